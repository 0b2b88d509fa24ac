package parser

import (
	"strings"

	"resume-agent-go/internal/types"
)

// 完整度权重表，合计100分
// 领域关键字段（ERP系统/模块、工作与项目经历）权重高于联系信息
const (
	weightName           = 5
	weightEmail          = 5
	weightPhone          = 5
	weightLocation       = 5
	weightSummary        = 5
	weightYears          = 5
	weightERPSystems     = 15
	weightERPModules     = 15
	weightJobExperience  = 10
	weightERPProjects    = 10
	weightCurrentRole    = 3
	weightCurrentCompany = 2
	weightEducation      = 5
	weightSkills         = 5
	weightCertifications = 5
)

// Scorer 画像完整度打分器
type Scorer struct{}

// NewScorer 创建打分器
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score 按固定权重表计算画像完整度，区间[0,100]
// 纯函数：字段非空（去空白后）或数组非空即计入对应权重
// 向已有画像补入此前为空的字段只会升分或持平，绝不降分
func (s *Scorer) Score(p *types.CandidateProfile) int {
	score := 0

	if populated(p.Name) {
		score += weightName
	}
	if populated(p.Email) {
		score += weightEmail
	}
	if populated(p.Phone) {
		score += weightPhone
	}
	if populated(p.Location) {
		score += weightLocation
	}
	if populated(p.Summary) {
		score += weightSummary
	}
	if populated(p.TotalYearsExperience) {
		score += weightYears
	}

	if len(p.ERPSystems) > 0 {
		score += weightERPSystems
	}
	if len(p.ERPModules) > 0 {
		score += weightERPModules
	}

	if len(p.JobExperience) > 0 {
		score += weightJobExperience
	}
	if len(p.ERPProjects) > 0 {
		score += weightERPProjects
	}

	if populated(p.CurrentRole) {
		score += weightCurrentRole
	}
	if populated(p.CurrentCompany) {
		score += weightCurrentCompany
	}

	if len(p.Education) > 0 {
		score += weightEducation
	}
	if len(p.TechnicalSkills) > 0 {
		score += weightSkills
	}
	if len(p.Certifications) > 0 {
		score += weightCertifications
	}

	if score > 100 {
		score = 100
	}
	return score
}

func populated(s string) bool {
	return strings.TrimSpace(s) != ""
}

package parser

import (
	"testing"

	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
)

func fullProfile() *types.CandidateProfile {
	return &types.CandidateProfile{
		Name:                 "Ahmed Khan",
		Email:                "ahmed@erp.ae",
		Phone:                "971501234567",
		Location:             "Dubai, UAE",
		LinkedIn:             "linkedin.com/in/ahmed-khan",
		Summary:              "SAP FICO lead with 12 years of delivery experience.",
		TotalYearsExperience: "12",
		CurrentRole:          "SAP FICO Lead",
		CurrentCompany:       "Gulf Consulting",
		ERPSystems:           []string{"SAP"},
		ERPModules:           []string{"FI", "CO"},
		TechnicalSkills:      []string{"ABAP"},
		Certifications:       []string{"SAP Certified"},
		Education:            []types.Education{{Degree: "MBA", University: "AUS"}},
		JobExperience:        []types.JobExperience{{Position: "Lead", CompanyName: "Gulf Consulting"}},
		ERPProjects:          []types.ERPProject{{ProjectName: "S4 Rollout"}},
	}
}

func TestScoreFullProfile(t *testing.T) {
	s := NewScorer()
	assert.Equal(t, 100, s.Score(fullProfile()), "全字段画像应得满分")
}

func TestScoreEmptyProfile(t *testing.T) {
	s := NewScorer()
	assert.Equal(t, 0, s.Score(&types.CandidateProfile{}), "空画像应得0分")
}

func TestScoreWhitespaceNotPopulated(t *testing.T) {
	s := NewScorer()
	p := &types.CandidateProfile{Name: "   ", Summary: "\t"}
	assert.Equal(t, 0, s.Score(p), "纯空白字段不计分")
}

func TestScoreDomainFieldsWeighHeavier(t *testing.T) {
	s := NewScorer()

	contact := &types.CandidateProfile{Name: "A", Email: "a@b.c", Phone: "123"}
	domain := &types.CandidateProfile{ERPSystems: []string{"SAP"}, ERPModules: []string{"FI"}}
	assert.Greater(t, s.Score(domain), s.Score(contact), "领域字段权重应高于联系信息")
}

func TestScoreMonotonic(t *testing.T) {
	s := NewScorer()

	p := &types.CandidateProfile{Name: "Lin"}
	base := s.Score(p)

	p.ERPSystems = []string{"Oracle Fusion"}
	withSystems := s.Score(p)
	assert.Greater(t, withSystems, base, "补入空字段只能升分")

	p.Location = "Singapore"
	assert.GreaterOrEqual(t, s.Score(p), withSystems, "继续补字段分数不得回落")
}

func TestScoreDeterministic(t *testing.T) {
	s := NewScorer()
	p := fullProfile()
	assert.Equal(t, s.Score(p), s.Score(p), "同一画像多次打分结果一致")
}

package types

// CandidateProfile 简历解析后的结构化候选人画像
// 字段的JSON标签与提取Schema保持一致，模型输出可直接映射
type CandidateProfile struct {
	// 身份信息
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	LinkedIn string `json:"linkedin"`

	// 概述
	Summary              string `json:"summary"`
	TotalYearsExperience string `json:"total_years_experience"`
	CurrentRole          string `json:"current_role"`
	CurrentCompany       string `json:"current_company"`

	// 分类信息
	ERPSystems      []string `json:"erp_systems"`
	ERPModules      []string `json:"erp_modules"`
	TechnicalSkills []string `json:"technical_skills"`
	Certifications  []string `json:"certifications"`

	// 经历
	Education     []Education     `json:"education"`
	JobExperience []JobExperience `json:"job_experience"`
	ERPProjects   []ERPProject    `json:"erp_projects_experience"`

	// 派生元数据
	CompletenessScore int    `json:"_completeness_score"`
	ATSUserID         string `json:"_ats_user_id,omitempty"`
	ATSResumeURL      string `json:"_ats_resume_url,omitempty"`
}

// Education 教育经历条目
type Education struct {
	Degree     string `json:"degree"`
	University string `json:"university"`
	Year       string `json:"year"`
}

// JobExperience 工作经历条目
type JobExperience struct {
	Position             string `json:"position"`
	Country              string `json:"country"`
	CompanyName          string `json:"company_name"`
	EmploymentType       string `json:"employment_type"`
	CurrentlyWorkingHere bool   `json:"currently_working_here"`
	FromDate             string `json:"from_date"`
	ToDate               string `json:"to_date"`
	ShortDescription     string `json:"short_description"`
}

// ERPProject ERP项目经历条目，按模块类别细分
type ERPProject struct {
	CompanyName       string   `json:"company_name"`
	ProjectName       string   `json:"project_name"`
	ProjectDomain     string   `json:"project_domain"`
	ProjectType       []string `json:"project_type"`
	CurrentlyWorking  bool     `json:"currently_working_on_this_project"`
	FromDate          string   `json:"from_date"`
	ToDate            string   `json:"to_date"`
	ProjectPhases     []string `json:"project_phases_involved"`
	WorkLocationType  []string `json:"work_location_type"`
	Product           string   `json:"product"`
	Track             string   `json:"track"`
	FinancialsModules []string `json:"financials_modules"`
	HCMModules        []string `json:"hcm_modules"`
	SCMModules        []string `json:"scm_modules"`
	Role              string   `json:"role"`
}

// HasIdentity 判断画像是否至少带有一个可识别字段
// 带有任一识别字段的画像视为有效结果，不作为失败处理
func (p *CandidateProfile) HasIdentity() bool {
	return p.Name != "" || p.Email != "" || p.Phone != "" ||
		len(p.ERPSystems) > 0 || len(p.JobExperience) > 0
}

// ModelConfig 单个模型调用配置，不可变，按顺序消费
type ModelConfig struct {
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// ChunkMode 分块决策结果
type ChunkMode string

const (
	// ChunkSinglePass 文本未超预算，整体单次送入模型
	ChunkSinglePass ChunkMode = "SINGLE_PASS"
	// ChunkTruncated 轻度超限，保留首尾、丢弃中段
	ChunkTruncated ChunkMode = "TRUNCATED"
	// ChunkMulti 严重超限，按章节切分为多个主题块
	ChunkMulti ChunkMode = "MULTI_CHUNK"
)

// ResumeChunk 一次模型调用所携带的简历文本切片
type ResumeChunk struct {
	Label string // 人类可读的块标签，例如 "header+skills"
	Text  string
}

// ChunkPlan 分块策略的完整输出
type ChunkPlan struct {
	Mode   ChunkMode
	Chunks []ResumeChunk
}

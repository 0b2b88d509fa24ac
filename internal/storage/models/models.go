package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resume-agent-go/internal/types"

	"gorm.io/datatypes"
)

// Resume 候选人画像主表，一行对应一次成功解析的简历
// 标量字段落普通列便于LIKE检索，数组与经历字段落JSON列
type Resume struct {
	ResumeID             string         `gorm:"type:char(36);primaryKey"`
	Name                 string         `gorm:"type:varchar(255);index:idx_resumes_name"`
	Email                string         `gorm:"type:varchar(255);index:idx_resumes_email"`
	Phone                string         `gorm:"type:varchar(50)"`
	Location             string         `gorm:"type:varchar(255)"`
	LinkedIn             string         `gorm:"type:varchar(512)"`
	Summary              string         `gorm:"type:text"`
	TotalYearsExperience string         `gorm:"type:varchar(20)"`
	CurrentRole          string         `gorm:"type:varchar(255)"`
	CurrentCompany       string         `gorm:"type:varchar(255)"`
	ERPSystems           datatypes.JSON `gorm:"type:json"`
	ERPModules           datatypes.JSON `gorm:"type:json"`
	TechnicalSkills      datatypes.JSON `gorm:"type:json"`
	Certifications       datatypes.JSON `gorm:"type:json"`
	Education            datatypes.JSON `gorm:"type:json"`
	JobExperience        datatypes.JSON `gorm:"type:json"`
	ERPProjects          datatypes.JSON `gorm:"type:json"`
	// 检索辅助列：数组字段的逗号拼接，供关键词LIKE使用
	ERPSystemsText  string `gorm:"type:text"`
	ERPModulesText  string `gorm:"type:text"`
	SkillsText      string `gorm:"type:text"`
	CompletenessScore int  `gorm:"type:int"`
	// 提取与去重元数据
	RawTextMD5       string `gorm:"type:char(32);uniqueIndex:idx_resumes_raw_text_md5"`
	OriginalFilename string `gorm:"type:varchar(255)"`
	OriginalFileOSS  string `gorm:"type:varchar(1024)"`
	ProfileDocOSS    string `gorm:"type:varchar(1024)"`
	ParserVersion    string `gorm:"type:varchar(50)"`
	// 外部ATS同步回填
	ATSUserID    string    `gorm:"type:varchar(64);index:idx_resumes_ats_user_id"`
	ATSResumeURL string    `gorm:"type:varchar(1024)"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_resumes_created_at"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Resume) TableName() string {
	return "resumes"
}

// FromProfile 把类型化画像落成数据库行
func FromProfile(resumeID string, p *types.CandidateProfile) (*Resume, error) {
	systems, err := marshalJSON(p.ERPSystems)
	if err != nil {
		return nil, err
	}
	modules, err := marshalJSON(p.ERPModules)
	if err != nil {
		return nil, err
	}
	skills, err := marshalJSON(p.TechnicalSkills)
	if err != nil {
		return nil, err
	}
	certs, err := marshalJSON(p.Certifications)
	if err != nil {
		return nil, err
	}
	education, err := marshalJSON(p.Education)
	if err != nil {
		return nil, err
	}
	jobs, err := marshalJSON(p.JobExperience)
	if err != nil {
		return nil, err
	}
	projects, err := marshalJSON(p.ERPProjects)
	if err != nil {
		return nil, err
	}

	return &Resume{
		ResumeID:             resumeID,
		Name:                 p.Name,
		Email:                p.Email,
		Phone:                p.Phone,
		Location:             p.Location,
		LinkedIn:             p.LinkedIn,
		Summary:              p.Summary,
		TotalYearsExperience: p.TotalYearsExperience,
		CurrentRole:          p.CurrentRole,
		CurrentCompany:       p.CurrentCompany,
		ERPSystems:           systems,
		ERPModules:           modules,
		TechnicalSkills:      skills,
		Certifications:       certs,
		Education:            education,
		JobExperience:        jobs,
		ERPProjects:          projects,
		ERPSystemsText:       joinList(p.ERPSystems),
		ERPModulesText:       joinList(p.ERPModules),
		SkillsText:           joinList(p.TechnicalSkills),
		CompletenessScore:    p.CompletenessScore,
		ATSUserID:            p.ATSUserID,
		ATSResumeURL:         p.ATSResumeURL,
	}, nil
}

// ToProfile 把数据库行还原为类型化画像
func (r *Resume) ToProfile() (*types.CandidateProfile, error) {
	p := &types.CandidateProfile{
		Name:                 r.Name,
		Email:                r.Email,
		Phone:                r.Phone,
		Location:             r.Location,
		LinkedIn:             r.LinkedIn,
		Summary:              r.Summary,
		TotalYearsExperience: r.TotalYearsExperience,
		CurrentRole:          r.CurrentRole,
		CurrentCompany:       r.CurrentCompany,
		CompletenessScore:    r.CompletenessScore,
		ATSUserID:            r.ATSUserID,
		ATSResumeURL:         r.ATSResumeURL,
	}

	if err := unmarshalJSON(r.ERPSystems, &p.ERPSystems); err != nil {
		return nil, fmt.Errorf("解析erp_systems列失败: %w", err)
	}
	if err := unmarshalJSON(r.ERPModules, &p.ERPModules); err != nil {
		return nil, fmt.Errorf("解析erp_modules列失败: %w", err)
	}
	if err := unmarshalJSON(r.TechnicalSkills, &p.TechnicalSkills); err != nil {
		return nil, fmt.Errorf("解析technical_skills列失败: %w", err)
	}
	if err := unmarshalJSON(r.Certifications, &p.Certifications); err != nil {
		return nil, fmt.Errorf("解析certifications列失败: %w", err)
	}
	if err := unmarshalJSON(r.Education, &p.Education); err != nil {
		return nil, fmt.Errorf("解析education列失败: %w", err)
	}
	if err := unmarshalJSON(r.JobExperience, &p.JobExperience); err != nil {
		return nil, fmt.Errorf("解析job_experience列失败: %w", err)
	}
	if err := unmarshalJSON(r.ERPProjects, &p.ERPProjects); err != nil {
		return nil, fmt.Errorf("解析erp_projects列失败: %w", err)
	}
	return p, nil
}

func marshalJSON(v interface{}) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化JSON列失败: %w", err)
	}
	return datatypes.JSON(data), nil
}

func unmarshalJSON(data datatypes.JSON, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}

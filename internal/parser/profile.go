package parser

import (
	"strings"

	"resume-agent-go/internal/types"
)

// ProfileFromMap 把补全后的解析结果落成类型化画像
// 模型输出的对象数组成员可能异构（缺字段、值类型不定），
// 逐字段安全取值，绝不因为单条脏数据失败
func ProfileFromMap(parsed map[string]interface{}) *types.CandidateProfile {
	n := NewTextNormalizer()

	profile := &types.CandidateProfile{
		Name:                 stringValue(parsed["name"]),
		Email:                stringValue(parsed["email"]),
		Phone:                stringValue(parsed["phone"]),
		Location:             stringValue(parsed["location"]),
		LinkedIn:             stringValue(parsed["linkedin"]),
		Summary:              stringValue(parsed["summary"]),
		TotalYearsExperience: stringValue(parsed["total_years_experience"]),
		CurrentRole:          stringValue(parsed["current_role"]),
		CurrentCompany:       stringValue(parsed["current_company"]),
		ERPSystems:           n.CleanStringArray(toInterfaceSlice(parsed["erp_systems"])),
		ERPModules:           n.CleanStringArray(toInterfaceSlice(parsed["erp_modules"])),
		TechnicalSkills:      n.CleanStringArray(toInterfaceSlice(parsed["technical_skills"])),
		Certifications:       n.CleanStringArray(toInterfaceSlice(parsed["certifications"])),
	}

	for _, item := range toInterfaceSlice(parsed["education"]) {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		profile.Education = append(profile.Education, types.Education{
			Degree:     stringValue(obj["degree"]),
			University: stringValue(obj["university"]),
			Year:       stringValue(obj["year"]),
		})
	}

	for _, item := range toInterfaceSlice(parsed["job_experience"]) {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		profile.JobExperience = append(profile.JobExperience, types.JobExperience{
			Position:             stringValue(obj["position"]),
			Country:              stringValue(obj["country"]),
			CompanyName:          stringValue(obj["company_name"]),
			EmploymentType:       stringValue(obj["employment_type"]),
			CurrentlyWorkingHere: boolValue(obj["currently_working_here"]),
			FromDate:             stringValue(obj["from_date"]),
			ToDate:               stringValue(obj["to_date"]),
			ShortDescription:     stringValue(obj["short_description"]),
		})
	}

	for _, item := range toInterfaceSlice(parsed["erp_projects_experience"]) {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		profile.ERPProjects = append(profile.ERPProjects, types.ERPProject{
			CompanyName:       stringValue(obj["company_name"]),
			ProjectName:       stringValue(obj["project_name"]),
			ProjectDomain:     stringValue(obj["project_domain"]),
			ProjectType:       n.CleanStringArray(toInterfaceSlice(obj["project_type"])),
			CurrentlyWorking:  boolValue(obj["currently_working_on_this_project"]),
			FromDate:          stringValue(obj["from_date"]),
			ToDate:            stringValue(obj["to_date"]),
			ProjectPhases:     n.CleanStringArray(toInterfaceSlice(obj["project_phases_involved"])),
			WorkLocationType:  n.CleanStringArray(toInterfaceSlice(obj["work_location_type"])),
			Product:           stringValue(obj["product"]),
			Track:             stringValue(obj["track"]),
			FinancialsModules: n.CleanStringArray(toInterfaceSlice(obj["financials_modules"])),
			HCMModules:        n.CleanStringArray(toInterfaceSlice(obj["hcm_modules"])),
			SCMModules:        n.CleanStringArray(toInterfaceSlice(obj["scm_modules"])),
			Role:              stringValue(obj["role"]),
		})
	}

	return profile
}

// boolValue 宽容解析布尔值：接受原生布尔和 "true"/"yes" 字符串
func boolValue(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true") || strings.EqualFold(b, "yes")
	default:
		return false
	}
}

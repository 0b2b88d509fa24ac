package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileFromMap(t *testing.T) {
	parsed := map[string]interface{}{
		"name":                   "Chen Li",
		"email":                  "chen.li@erp.cn",
		"total_years_experience": float64(9), // 模型有时返回数字
		"erp_systems":            []interface{}{"SAP", map[string]interface{}{"Title": "Oracle Fusion"}},
		"education": []interface{}{
			map[string]interface{}{"degree": "B.Eng", "university": "Tsinghua", "year": float64(2014)},
			"不是对象的脏数据",
		},
		"job_experience": []interface{}{
			map[string]interface{}{
				"position":               "ERP Lead",
				"company_name":           "Huawei",
				"currently_working_here": true,
				"from_date":              "2019-06",
			},
			map[string]interface{}{
				"position":               "Consultant",
				"company_name":           "Accenture",
				"currently_working_here": "true", // 布尔被模型写成字符串
			},
		},
		"erp_projects_experience": []interface{}{
			map[string]interface{}{
				"project_name":       "S4 Finance",
				"financials_modules": []interface{}{"FI", "CO"},
				"project_type":       []interface{}{"Implementation"},
			},
		},
	}

	p := ProfileFromMap(parsed)

	assert.Equal(t, "Chen Li", p.Name)
	assert.Equal(t, "9", p.TotalYearsExperience, "数字年限应转为字符串")
	assert.Equal(t, []string{"SAP", "Oracle Fusion"}, p.ERPSystems, "对象成员应按Title归一")

	require.Len(t, p.Education, 1, "非对象的教育条目应被跳过")
	assert.Equal(t, "2014", p.Education[0].Year)

	require.Len(t, p.JobExperience, 2)
	assert.True(t, p.JobExperience[0].CurrentlyWorkingHere)
	assert.True(t, p.JobExperience[1].CurrentlyWorkingHere, "字符串形式的true也应识别")

	require.Len(t, p.ERPProjects, 1)
	assert.Equal(t, []string{"FI", "CO"}, p.ERPProjects[0].FinancialsModules)
}

func TestProfileFromMapEmptyInput(t *testing.T) {
	p := ProfileFromMap(map[string]interface{}{})

	assert.Equal(t, "", p.Name, "缺失标量应为空串而非崩溃")
	assert.Empty(t, p.ERPSystems)
	assert.False(t, p.HasIdentity(), "空画像不应带有识别字段")
}

func TestHasIdentity(t *testing.T) {
	p := ProfileFromMap(map[string]interface{}{"phone": "9876543210"})
	assert.True(t, p.HasIdentity(), "任一识别字段非空即视为有效结果")
}

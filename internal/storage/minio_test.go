package storage

import (
	"strings"
	"testing"

	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestRenderProfileDoc(t *testing.T) {
	p := &types.CandidateProfile{
		Name:                 "Maria Santos",
		Email:                "maria.santos@mail.com",
		Location:             "Lisbon, Portugal",
		CurrentRole:          "Oracle Fusion Consultant",
		TotalYearsExperience: "8",
		ERPSystems:           []string{"Oracle Fusion"},
		ERPModules:           []string{"GL", "AP"},
		TechnicalSkills:      []string{"SQL"},
		Summary:              "Finance transformation specialist",
	}

	doc := RenderProfileDoc(p, "raw resume body")

	assert.True(t, strings.HasPrefix(doc, "CANDIDATE: Maria Santos\n"), "首行应为候选人姓名")
	assert.Contains(t, doc, "EMAIL: maria.santos@mail.com\n")
	assert.Contains(t, doc, "PHONE: N/A\n", "缺失字段应渲染为N/A")
	assert.Contains(t, doc, "EXPERIENCE: 8 years\n")
	assert.Contains(t, doc, "ERP MODULES: GL, AP\n")
	assert.Contains(t, doc, "SUMMARY:\nFinance transformation specialist\n")
	assert.Contains(t, doc, "FULL RESUME TEXT:\nraw resume body\n")
}

func TestRenderProfileDocTruncatesRawText(t *testing.T) {
	long := strings.Repeat("x", profileDocRawTextLimit+500)
	doc := RenderProfileDoc(&types.CandidateProfile{}, long)

	assert.Contains(t, doc, "CANDIDATE: Unknown\n", "无姓名时应落Unknown")
	assert.NotContains(t, doc, strings.Repeat("x", profileDocRawTextLimit+1), "原文应截断到上限")
	assert.Contains(t, doc, strings.Repeat("x", profileDocRawTextLimit))
}

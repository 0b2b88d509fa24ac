package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDirectParse(t *testing.T) {
	raw := `{"name": "张伟", "email": "zhangwei@example.com"}`

	result, partial, err := Decode(raw)
	require.NoError(t, err, "合法JSON应直接解析成功")
	assert.False(t, partial, "直接解析不应标记为部分结果")
	assert.Equal(t, "张伟", result["name"], "name字段应正确解析")
}

func TestDecodeStripsMarkdownFence(t *testing.T) {
	raw := "这是解析结果：\n```json\n{\"name\": \"Ali Hassan\", \"erp_systems\": [\"SAP\"]}\n```\n希望对你有帮助。"

	result, partial, err := Decode(raw)
	require.NoError(t, err, "带围栏的JSON应在清理后解析成功")
	assert.False(t, partial)
	assert.Equal(t, "Ali Hassan", result["name"])

	systems, ok := result["erp_systems"].([]interface{})
	require.True(t, ok, "erp_systems应为数组")
	assert.Equal(t, "SAP", systems[0])
}

func TestDecodeStripsThinkBlocks(t *testing.T) {
	raw := "<think>\n候选人看起来是SAP顾问，\n先抽取联系方式。\n</think>\n{\"name\": \"John\"}"

	result, partial, err := Decode(raw)
	require.NoError(t, err, "推理块应被剥离")
	assert.False(t, partial)
	assert.Equal(t, "John", result["name"])
}

func TestDecodeRestoresMissingClosers(t *testing.T) {
	// 缺少两层闭合：数组和对象各缺一个
	raw := `{"name": "Maria", "erp_modules": ["FI", "CO"`

	result, partial, err := Decode(raw)
	require.NoError(t, err, "补齐闭合括号后应解析成功")
	assert.False(t, partial, "括号补齐属于阶段3，不标记为部分结果")
	assert.Equal(t, "Maria", result["name"])

	modules, ok := result["erp_modules"].([]interface{})
	require.True(t, ok)
	assert.Len(t, modules, 2)
}

func TestDecodeProgressiveTruncation(t *testing.T) {
	// 前缀是一个完整对象，其后跟着括号补齐也救不回的烂尾输出
	// 烂尾长度恰为一个截断步长，确保截断点能落在前缀边界上
	prefix := `{"name": "Chen", "summary": "` + strings.Repeat("seasoned ERP consultant ", 6) + `"}`
	garbage := `, "broken": ]]]` + strings.Repeat(" ", truncationStep-16) + `}`
	require.Len(t, garbage, truncationStep)
	raw := prefix + garbage

	result, partial, err := Decode(raw)
	require.NoError(t, err, "渐进截断应找回可解析前缀")
	assert.True(t, partial, "阶段4恢复必须标记为部分结果")
	assert.Equal(t, "Chen", result["name"])
}

func TestDecodeEmptyInputFailsImmediately(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		_, _, err := Decode(raw)
		require.Error(t, err, "空白输入必须立即失败")
		assert.ErrorIs(t, err, types.ErrUnparsableOutput)
	}
}

func TestDecodeHopelessInputFails(t *testing.T) {
	_, _, err := Decode("很抱歉，我无法从这份简历中提取任何信息。")
	require.Error(t, err, "不含JSON结构的输出应失败")
	assert.ErrorIs(t, err, types.ErrUnparsableOutput)
}

func TestFixJSONStringExtractsObjectSubstring(t *testing.T) {
	raw := "前置噪声 {\"a\": 1} 后置噪声"
	assert.Equal(t, `{"a": 1}`, FixJSONString(raw))

	assert.Equal(t, "", FixJSONString("没有任何对象"), "无对象结构应返回空串")
	assert.Equal(t, "", FixJSONString(""), "空输入应返回空串")
}

func TestDecodeRoundTripProfile(t *testing.T) {
	profile := types.CandidateProfile{
		Name:       "Fatima Noor",
		Email:      "fatima@corp.sa",
		ERPSystems: []string{"Oracle Fusion", "SAP S/4HANA"},
		JobExperience: []types.JobExperience{
			{Position: "ERP Lead", CompanyName: "Gulf Retail", FromDate: "2019-03"},
		},
	}
	data, err := json.Marshal(profile)
	require.NoError(t, err)

	// 模拟模型把合法JSON包在围栏里返回
	raw := "```json\n" + string(data) + "\n```"
	result, partial, err := Decode(raw)
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, "Fatima Noor", result["name"])
	assert.Equal(t, "fatima@corp.sa", result["email"])
}

func TestDecodeArray(t *testing.T) {
	raw := "```json\n[{\"candidate_number\": 2, \"score\": 85, \"reason\": \"SAP FICO匹配\"}]\n```"

	result, err := DecodeArray(raw)
	require.NoError(t, err, "带围栏的数组应解析成功")
	require.Len(t, result, 1)

	item, ok := result[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), item["candidate_number"])
	assert.Equal(t, float64(85), item["score"])
}

func TestDecodeArrayBalancesTruncatedTail(t *testing.T) {
	raw := `[{"candidate_number": 1, "score": 90, "reason": "精确匹配"}`

	result, err := DecodeArray(raw)
	require.NoError(t, err, "缺失闭合的数组应在补齐后解析成功")
	assert.Len(t, result, 1)
}

func TestDecodeArrayRejectsNonArray(t *testing.T) {
	_, err := DecodeArray("这里没有数组")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnparsableOutput)
}

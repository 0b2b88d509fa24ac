package parser

import (
	"fmt"
	"strings"
)

// 合并时按类别处理的字段清单，与抽取Schema保持一致
var (
	scalarFields = []string{
		"name", "email", "phone", "location", "linkedin", "summary",
		"total_years_experience", "current_role", "current_company",
	}
	stringArrayFields = []string{
		"erp_systems", "erp_modules", "technical_skills", "certifications",
	}
	// 对象数组字段与其去重复合键
	objectArrayKeys = map[string][]string{
		"education":               {"degree", "university"},
		"job_experience":          {"company_name", "position"},
		"erp_projects_experience": {"project_name", "company_name"},
	}
)

// Merger 把多个分块解析结果合并为一份画像
// 首个结果作为基底；标量取更长的非空值，数组并集去重
type Merger struct {
	normalizer *TextNormalizer
}

// NewMerger 创建合并器
func NewMerger(normalizer *TextNormalizer) *Merger {
	return &Merger{normalizer: normalizer}
}

// Merge 按分块顺序合并解析结果
//   - 标量字段：基底为空时填入，或新值字符串更长时覆盖
//   - 字符串数组：并集，大小写不敏感去重，保留首见写法
//   - 对象数组：拼接后按复合键（小写去空白）去重，全空键的条目丢弃
//
// 合并永远成功，不存在非法的合并状态
func (m *Merger) Merge(results []map[string]interface{}) map[string]interface{} {
	if len(results) == 0 {
		return map[string]interface{}{}
	}

	merged := make(map[string]interface{}, len(results[0]))
	for k, v := range results[0] {
		merged[k] = v
	}

	for _, result := range results[1:] {
		for _, field := range scalarFields {
			incoming := stringValue(result[field])
			if incoming == "" {
				continue
			}
			current := stringValue(merged[field])
			if current == "" || len(incoming) > len(current) {
				merged[field] = incoming
			}
		}

		for _, field := range stringArrayFields {
			if _, ok := result[field]; !ok {
				continue
			}
			combined := concatSlices(merged[field], result[field])
			merged[field] = stringsToInterfaces(m.normalizer.CleanStringArray(combined))
		}

		for field, keyFields := range objectArrayKeys {
			if _, ok := result[field]; !ok {
				continue
			}
			combined := concatSlices(merged[field], result[field])
			merged[field] = dedupObjects(combined, keyFields)
		}
	}

	return merged
}

// dedupObjects 按复合键去重对象数组，保留首次出现的条目
// 非对象成员按自身字符串值去重；复合键所有分量均为空的条目丢弃
func dedupObjects(items []interface{}, keyFields []string) []interface{} {
	seen := make(map[string]bool, len(items))
	unique := make([]interface{}, 0, len(items))

	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			key := "#raw:" + strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", item)))
			if !seen[key] {
				seen[key] = true
				unique = append(unique, item)
			}
			continue
		}

		parts := make([]string, 0, len(keyFields))
		empty := true
		for _, f := range keyFields {
			part := strings.ToLower(strings.TrimSpace(stringValue(obj[f])))
			if part != "" {
				empty = false
			}
			parts = append(parts, part)
		}
		if empty {
			continue
		}

		key := strings.Join(parts, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, item)
	}

	return unique
}

// stringValue 把任意JSON标量安全转为字符串，nil视为空
func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

// concatSlices 拼接两个任意来源的数组值，永远返回新切片，不改写入参
func concatSlices(a, b interface{}) []interface{} {
	left := toInterfaceSlice(a)
	right := toInterfaceSlice(b)
	out := make([]interface{}, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	return out
}

func toInterfaceSlice(v interface{}) []interface{} {
	switch s := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return s
	case []string:
		return stringsToInterfaces(s)
	default:
		return []interface{}{s}
	}
}

func stringsToInterfaces(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

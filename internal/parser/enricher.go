package parser

import (
	"strings"
)

// erpSystemMappings ERP系统名称规范化同义词表
var erpSystemMappings = map[string]string{
	"D365":         "Microsoft Dynamics 365",
	"EBS":          "Oracle E-Business Suite",
	"JDE":          "JD Edwards",
	"PS":           "PeopleSoft",
	"Netsuite":     "NetSuite",
	"Ms Dynamics":  "Microsoft Dynamics",
	"Oracle Cloud": "Oracle Cloud ERP",
	"Fusion":       "Oracle Fusion",
}

// erpModuleExpansions 复合模块代号展开表，只增不删
var erpModuleExpansions = map[string][]string{
	"FICO": {"FI", "CO", "Financial Accounting", "Controlling"},
	"SCM":  {"MM", "SD", "Supply Chain Management"},
	"HCM":  {"HR", "Human Capital Management"},
}

// Enricher 对解析结果做后处理：数组归一、正则兜底回填、
// ERP系统名规范化与复合模块展开
// 各步骤幂等；ERP字段必须先规范化再展开
type Enricher struct {
	normalizer *TextNormalizer
}

// NewEnricher 创建补全器
func NewEnricher(normalizer *TextNormalizer) *Enricher {
	return &Enricher{normalizer: normalizer}
}

// Enhance 就地补全解析结果并返回
//  1. 四个分类数组做字符串归一与去重
//  2. 空标量字段（email/phone/linkedin/name/年限）从原文正则回填
//  3. erp_systems 按同义词表规范化
//  4. erp_modules 中的复合代号展开为构成模块（已存在的不重复加入）
//  5. 缺失的分类数组一律补成空数组，不留undefined
func (e *Enricher) Enhance(parsed map[string]interface{}, rawText string) map[string]interface{} {
	if parsed == nil {
		parsed = map[string]interface{}{}
	}

	for _, field := range stringArrayFields {
		if _, ok := parsed[field]; ok {
			parsed[field] = stringsToInterfaces(e.normalizer.CleanStringArray(toInterfaceSlice(parsed[field])))
		}
	}

	if stringValue(parsed["email"]) == "" {
		if email := e.normalizer.ExtractEmail(rawText); email != "" {
			parsed["email"] = email
		}
	}
	if stringValue(parsed["phone"]) == "" {
		if phone := e.normalizer.ExtractPhone(rawText); phone != "" {
			parsed["phone"] = phone
		}
	}
	if stringValue(parsed["linkedin"]) == "" {
		if linkedin := e.normalizer.ExtractLinkedIn(rawText); linkedin != "" {
			parsed["linkedin"] = linkedin
		}
	}
	if stringValue(parsed["name"]) == "" {
		if name := nameFromEmail(stringValue(parsed["email"])); name != "" {
			parsed["name"] = name
		}
	}

	e.canonicalizeSystems(parsed)
	e.expandModules(parsed)
	e.backfillYears(parsed, rawText)

	for _, field := range stringArrayFields {
		if _, ok := parsed[field]; !ok {
			parsed[field] = []interface{}{}
		}
	}

	return parsed
}

// canonicalizeSystems 把erp_systems中的已知缩写替换为规范名并去重
func (e *Enricher) canonicalizeSystems(parsed map[string]interface{}) {
	systems := toInterfaceSlice(parsed["erp_systems"])
	if len(systems) == 0 {
		return
	}

	normalized := make([]string, 0, len(systems))
	for _, raw := range e.normalizer.CleanStringArray(systems) {
		if canonical, ok := erpSystemMappings[raw]; ok {
			raw = canonical
		}
		normalized = append(normalized, raw)
	}
	parsed["erp_systems"] = stringsToInterfaces(e.normalizer.DedupStrings(normalized))
}

// expandModules 展开erp_modules中的复合模块代号，保持原有条目不动
func (e *Enricher) expandModules(parsed map[string]interface{}) {
	modules := e.normalizer.CleanStringArray(toInterfaceSlice(parsed["erp_modules"]))
	if len(modules) == 0 {
		return
	}

	expanded := make([]string, 0, len(modules))
	expanded = append(expanded, modules...)
	for _, module := range modules {
		if constituents, ok := erpModuleExpansions[strings.ToUpper(module)]; ok {
			expanded = append(expanded, constituents...)
		}
	}
	parsed["erp_modules"] = stringsToInterfaces(e.normalizer.DedupStrings(expanded))
}

// backfillYears 年限为空时回填：先取原文 "N years" 最大值，
// 再退化为工作经历起止年份跨度之和
func (e *Enricher) backfillYears(parsed map[string]interface{}, rawText string) {
	if stringValue(parsed["total_years_experience"]) != "" {
		return
	}

	if years := e.normalizer.ExtractYearsExperience(rawText); years != "" {
		parsed["total_years_experience"] = years
		return
	}

	var ranges []string
	for _, item := range toInterfaceSlice(parsed["job_experience"]) {
		job, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		ranges = append(ranges, stringValue(job["from_date"])+" "+stringValue(job["to_date"]))
	}
	if years := e.normalizer.YearsFromRanges(ranges); years != "" {
		parsed["total_years_experience"] = years
	}
}

// nameFromEmail 姓名兜底：取邮箱前缀，点和下划线换成空格后逐词首字母大写
func nameFromEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}

	prefix := email[:at]
	prefix = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(prefix)
	words := strings.Fields(prefix)
	for i, w := range words {
		// 去掉纯数字词，例如 zhang.wei.1988
		if strings.IndexFunc(w, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
			words[i] = ""
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}

	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			cleaned = append(cleaned, w)
		}
	}
	return strings.Join(cleaned, " ")
}

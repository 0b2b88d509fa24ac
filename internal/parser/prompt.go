package parser

import (
	"fmt"
	"strings"
)

// SystemInstruction 抽取调用的系统提示词
const SystemInstruction = "You are a resume parsing assistant. Extract structured information and return ONLY valid JSON. No markdown, no explanations."

// SearchSystemInstruction 搜索调用的系统提示词
const SearchSystemInstruction = "Return only valid JSON. No thinking process, no explanations."

// extractionSchema 目标画像结构，逐字嵌入提示词，保证模型输出键名可预测
// 与 types.CandidateProfile 的JSON标签一一对应，两处必须同步修改
const extractionSchema = `{
  "name": "",
  "email": "",
  "phone": "",
  "location": "",
  "linkedin": "",
  "summary": "",
  "total_years_experience": "",
  "current_role": "",
  "current_company": "",
  "erp_systems": [],
  "erp_modules": [],
  "technical_skills": [],
  "certifications": [],
  "education": [
    {
      "degree": "",
      "university": "",
      "year": ""
    }
  ],
  "job_experience": [
    {
      "position": "",
      "country": "",
      "company_name": "",
      "employment_type": "",
      "currently_working_here": false,
      "from_date": "",
      "to_date": "",
      "short_description": ""
    }
  ],
  "erp_projects_experience": [
    {
      "company_name": "",
      "project_name": "",
      "project_domain": "",
      "project_type": [],
      "currently_working_on_this_project": false,
      "from_date": "",
      "to_date": "",
      "project_phases_involved": [],
      "work_location_type": [],
      "product": "",
      "track": "",
      "financials_modules": [],
      "hcm_modules": [],
      "scm_modules": [],
      "role": ""
    }
  ]
}`

// extractionRules 封闭的抽取规则集，与Schema一起构成完整指令
const extractionRules = `EXTRACTION RULES (STRICT & ROBUST):
A. GENERAL RULES
1. If a field is not found, return "" or [] (never guess or hallucinate).
2. All extracted values must come directly from the resume text.
3. Maintain stable JSON structure even if resume is poorly formatted.
4. Do NOT invent companies, roles, modules, or degrees.
5. The output must be valid JSON only - no explanations, no markdown, no thinking process.

B. NAME EXTRACTION (VERY IMPORTANT)
1. If the resume does NOT explicitly say "Name", infer the name using:
   - The first bold/large text at the top
   - The first standalone line before contact info
   - The email prefix if needed (take first part before @)
   - Capitalized phrases that resemble human names
2. Ignore company names, project names, department names.
3. If multiple candidates appear, choose the primary one at the top.

C. PHONE EXTRACTION
1. Accept ALL formats: +91 9876543210, 9876543210, (987) 654-3210, 987.654.3210
2. Extract only numeric phone, last 10-12 digits.
3. If multiple numbers, pick the first valid mobile-like number.

D. EMAIL EXTRACTION
1. Extract any valid email with "@".
2. If multiple exist, pick the most personal-looking one.

E. LOCATION EXTRACTION
1. Look for city/state/country keywords anywhere.
2. Pick the FIRST location near contact section.

F. LINKEDIN EXTRACTION
1. Extract ANY linkedin.com URL.
2. Accept both http and https.

G. SUMMARY EXTRACTION
1. Look for "Summary", "Professional Summary", "Objective", "Profile".
2. If not found, capture the first 2-4 lines before experience starts.
3. Must be no longer than 3 sentences.

H. JOB EXPERIENCE EXTRACTION (VERY IMPORTANT - HANDLE ALL FORMATS)
1. Look for ANY employment history regardless of format:
   - Traditional format: "Company Name | Role | Duration"
   - Section-based: "Organization:", "Role:", "Duration:"
   - Project-based: "Projects Worked on:", "Implementation Projects:", "Support Projects:"
   - Bullet format: Company and role in bullets
   - Internships and past experiences count as job_experience too
2. For EACH employer/organization mentioned, create a job_experience entry
3. Extract these fields for each job:
   - position: The job title/role/designation
   - company_name: The organization/employer name
   - from_date: Start date (e.g., "August 2022", "Aug 2022", "2022")
   - to_date: End date or "Present" if current
   - currently_working_here: true if "Present", "Current", "Till date", or no end date
   - short_description: Key duties, responsibilities, achievements (combine bullet points)
   - country: Location/country if mentioned
   - employment_type: Full-time, Part-time, Contract, Internship
4. Accept ALL date formats: "August 2022 - Present", "Aug'22 - May'23", "2020-2023", "Jun 2018 - July 2021"
5. If resume mentions "X years of experience" but only projects (no company names), create ONE job_experience entry with the overall description
6. Internships should also be extracted as job_experience entries with employment_type="Internship"
7. NEVER return empty job_experience if the resume mentions any work history, roles, or professional duties

I. PROJECT EXTRACTION (ERP SPECIFIC)
1. For each project: name, region, modules, role, description
2. If multiple projects under one job, create multiple entries.

J. ERP MODULE DETECTION (AUTO-INFER)
Detect ALL module keywords: GL, AP, AR, FA, CM, INV, PO, OM, OTL, Payroll, Core HR, Absence Management, Benefits, Recruiting, etc.

K. ERP SYSTEM DETECTION
Detect: Oracle Fusion/Cloud, SAP, S/4HANA, NetSuite, Dynamics 365, Workday, Salesforce

L. EDUCATION, SKILLS, CERTIFICATIONS
Extract all degrees, technical skills, and certifications found.

M. TECHNICAL SKILLS EXTRACTION
Extract ALL mentioned skills including:
- ERP modules (GL, AP, AR, FA, CM, Core HR, etc.)
- Software tools (Microsoft Office, Tableau, Salesforce, etc.)
- Soft skills related to consulting (Client Handling, Training, Communication, Documentation)`

// PromptBuilder 构造抽取与搜索提示词
// 无网络无副作用，相同输入产出相同指令
type PromptBuilder struct{}

// NewPromptBuilder 创建提示词构造器
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildExtraction 构造简历抽取指令：目标Schema + 规则集 + 简历原文
func (b *PromptBuilder) BuildExtraction(resumeText string) string {
	var sb strings.Builder
	sb.WriteString("Extract information from this ERP Consultant resume. Return ONLY valid JSON (no markdown, no explanations, no thinking process).\n")
	sb.WriteString(extractionSchema)
	sb.WriteString("\n\n")
	sb.WriteString(extractionRules)
	sb.WriteString("\n\nResume:\n")
	sb.WriteString(resumeText)
	sb.WriteString("\n\nReturn ONLY the JSON object with no additional text:")
	return sb.String()
}

// BuildSearch 构造候选人排序指令：查询 + 编号候选人摘要列表
// 要求模型返回 [{"candidate_number", "score", "reason"}] 形态的JSON数组
func (b *PromptBuilder) BuildSearch(query string, summaries []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Search query: %q\n\n", query)
	sb.WriteString("Find matching candidates from this list. Return ONLY a JSON array with NO thinking tags:\n")
	sb.WriteString(`[
  {"candidate_number": 1, "score": 95, "reason": "Strong SAP FICO match"},
  {"candidate_number": 3, "score": 80, "reason": "Relevant modules"}
]`)
	sb.WriteString("\n\nCandidates:\n")
	sb.WriteString(strings.Join(summaries, "\n"))
	sb.WriteString("\n\nIMPORTANT: Return ONLY the JSON array, no <think> tags, no explanations.")
	return sb.String()
}

package ats

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/types"

	"github.com/rs/zerolog/log"
)

// 外部平台对单类条目的接收上限
const (
	maxSyncSkills         = 20
	maxSyncExperiences    = 5
	maxSyncEducation      = 3
	maxSyncCertifications = 5
)

// SyncOutcome 一次成功同步的产出
type SyncOutcome struct {
	UserID     string
	ResumeURL  string
	ProfileURL string
}

// Client 外部ATS平台的尽力而为客户端
// 创建候选人账号并逐段回写画像；任何一段失败只记日志，不影响解析主流程
type Client struct {
	baseURL    string
	token      string
	origin     string
	httpClient *http.Client
}

// NewClient 创建ATS客户端
func NewClient(cfg *config.ATSConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		origin:     cfg.FrontendOrigin,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Sync 把画像同步到外部平台
// 先创建候选人账号并从返回令牌中解出用户标识与简历URL，
// 再依次回写个人信息、技能、经历、教育与证书
func (c *Client) Sync(ctx context.Context, p *types.CandidateProfile) (*SyncOutcome, error) {
	outcome, err := c.createUser(ctx, p)
	if err != nil {
		return nil, err
	}

	firstName, lastName := splitName(p.Name)
	c.putSection(ctx, "ResumeBuilder/PersonalInfo/"+outcome.ResumeURL, map[string]interface{}{
		"EmailID":             p.Email,
		"MobileNumber":        cleanPhone(p.Phone, 10),
		"LinkedInProfileLink": p.LinkedIn,
		"FirstName":           firstName,
		"LastName":            lastName,
		"ProfileHeadline":     p.CurrentRole,
		"CurrentCity":         cityFromLocation(p.Location),
		"AboutMe":             p.Summary,
		"PassportAvailable":   "No",
		"Travel":              "No",
		"Relocation":          "No",
		"NightShift":          "No",
		"OpenForWork":         "Yes",
	}, "个人信息")

	skills := make([]map[string]string, 0, maxSyncSkills)
	for _, skill := range capStrings(p.TechnicalSkills, maxSyncSkills) {
		skills = append(skills, map[string]string{"Title": strings.TrimSpace(skill)})
	}
	c.putSection(ctx, "ResumeBuilder/ContactInfo/"+outcome.ResumeURL, map[string]interface{}{
		"Skills":    skills,
		"Languages": []map[string]interface{}{{"Title": "English", "LanguageID": 1}},
	}, "技能")

	if len(p.JobExperience) > 0 {
		experiences := make([]map[string]interface{}, 0, maxSyncExperiences)
		for _, exp := range p.JobExperience {
			if len(experiences) == maxSyncExperiences {
				break
			}
			experiences = append(experiences, map[string]interface{}{
				"Position":         exp.Position,
				"EmploymentType":   "Full-time",
				"CompanyName":      exp.CompanyName,
				"isPresent":        exp.CurrentlyWorkingHere,
				"Location":         p.Location,
				"ShortDescription": exp.ShortDescription,
			})
		}
		c.putSection(ctx, "ResumeBuilder/Experiences/"+outcome.ResumeURL, experiences, "工作经历")
	}

	if len(p.Education) > 0 {
		education := make([]map[string]interface{}, 0, maxSyncEducation)
		for _, edu := range p.Education {
			if len(education) == maxSyncEducation {
				break
			}
			education = append(education, map[string]interface{}{
				"Type":       "Degree",
				"Degree":     edu.Degree,
				"University": edu.University,
				"ToDateYear": edu.Year,
				"isPresent":  false,
			})
		}
		c.putSection(ctx, "ResumeBuilder/EducationCertifications/"+outcome.ResumeURL, education, "教育经历")
	}

	if len(p.Certifications) > 0 {
		certs := make([]map[string]interface{}, 0, maxSyncCertifications)
		for _, cert := range capStrings(p.Certifications, maxSyncCertifications) {
			certs = append(certs, map[string]interface{}{
				"Type":            "Certification",
				"CertificateName": cert,
				"isPresent":       true,
			})
		}
		c.putSection(ctx, "ResumeBuilder/Certifications/"+outcome.ResumeURL, certs, "证书")
	}

	return outcome, nil
}

// createUser 创建候选人账号并从返回令牌解出标识
func (c *Client) createUser(ctx context.Context, p *types.CandidateProfile) (*SyncOutcome, error) {
	firstName, lastName := splitName(p.Name)
	payload := map[string]interface{}{
		"RoleID":    "Candidate",
		"FirstName": firstName,
		"LastName":  lastName,
		"Phone":     cleanPhone(p.Phone, 10),
		"Email":     p.Email,
		"City":      cityFromLocation(p.Location),
	}

	body, status, err := c.doJSON(ctx, http.MethodPost, "users", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("创建候选人账号失败: 状态码 %d", status)
	}

	var response struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("解析账号创建响应失败: %w", err)
	}

	// data为字符串时是业务拒绝（例如邮箱已注册）
	var message string
	if err := json.Unmarshal(response.Data, &message); err == nil {
		return nil, fmt.Errorf("平台拒绝创建账号: %s", message)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		return nil, fmt.Errorf("解析账号创建响应失败: %w", err)
	}
	if data.Token == "" {
		return nil, fmt.Errorf("账号创建响应缺少令牌")
	}

	userID, resumeURL, err := decodeUserToken(data.Token)
	if err != nil {
		return nil, fmt.Errorf("解码平台令牌失败: %w", err)
	}
	if resumeURL == "" {
		return nil, fmt.Errorf("令牌未携带简历URL")
	}

	return &SyncOutcome{
		UserID:     userID,
		ResumeURL:  resumeURL,
		ProfileURL: c.origin + "/Resume/" + resumeURL,
	}, nil
}

// putSection 回写单个画像片段，失败只记日志
func (c *Client) putSection(ctx context.Context, path string, payload interface{}, label string) {
	_, status, err := c.doJSON(ctx, http.MethodPut, path, payload)
	if err != nil {
		log.Warn().Err(err).Str("section", label).Msg("ATS片段回写失败")
		return
	}
	if status != http.StatusOK {
		log.Warn().Int("status", status).Str("section", label).Msg("ATS片段回写被拒绝")
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.origin != "" {
		// 平台网关校验请求来源
		req.Header.Set("Origin", c.origin)
		req.Header.Set("Referer", c.origin+"/")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("请求 %s 失败: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("读取响应失败: %w", err)
	}
	return body, resp.StatusCode, nil
}

// decodeUserToken 解出JWT载荷中的用户标识（二次base64）与简历URL
func decodeUserToken(token string) (userID, resumeURL string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("令牌格式不合法")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("解码令牌载荷失败: %w", err)
	}

	var payload struct {
		UserInfo struct {
			ID        string `json:"ID"`
			ResumeURL string `json:"ResumeUrl"`
		} `json:"userInfo"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return "", "", fmt.Errorf("解析令牌载荷失败: %w", err)
	}

	if payload.UserInfo.ID != "" {
		if raw, derr := base64.StdEncoding.DecodeString(payload.UserInfo.ID); derr == nil {
			userID = string(raw)
		} else {
			log.Warn().Err(derr).Msg("解码用户标识失败，保留原始值")
			userID = payload.UserInfo.ID
		}
	}
	return userID, payload.UserInfo.ResumeURL, nil
}

// splitName 按首个空格拆出名与姓
func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// cleanPhone 去掉电话中的符号并保留末尾maxDigits位
func cleanPhone(phone string, maxDigits int) string {
	cleaned := strings.NewReplacer("+", "", "-", "", " ", "", "(", "", ")", "").Replace(phone)
	if len(cleaned) > maxDigits {
		cleaned = cleaned[len(cleaned)-maxDigits:]
	}
	return cleaned
}

// cityFromLocation 取地点串中首个逗号前的城市名
func cityFromLocation(location string) string {
	city, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(city)
}

func capStrings(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}

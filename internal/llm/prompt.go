package llm

import (
	"encoding/json"
	"strings"
)

// EducationHint is appended to the résumé text when it mentions education.
const EducationHint = "\n\n[注意：请仔细提取所有教育经历，包括完整的入学时间、毕业时间、学位、学校、专业和GPA信息]"

var educationKeywords = []string{
	"教育背景", "教育经历", "学历", "学位", "毕业", "入学", "大学", "学院", "学校",
	"本科", "硕士", "博士", "学士", "研究生", "GPA", "成绩", "专业", "院系",
}

// HasEducationSection reports whether any education keyword occurs in text.
func HasEducationSection(text string) bool {
	for _, k := range educationKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// BuildSystemPrompt composes the fixed extraction contract.
func BuildSystemPrompt() string {
	parts := []string{
		"你是一名专业的简历信息提取助手。输入是从简历文件中识别出的文本，可能含有OCR错误、错位或缺失，请结合上下文理解并标准化。",
		"只输出一个JSON对象，不要输出任何解释。字段无法确定时使用null；不要编造信息。",
		"字段约定：name（全名）；contact（phone、email、address，多个时取主要的一个）；" +
			"education（数组，每项含degree、institution、major、start_year、end_year、gpa）；" +
			"experience（数组，每项含title、company、start_date、end_date、description、location）；" +
			"projects（数组，每项含name、description、technologies数组、start_date、end_date）；" +
			"skills、languages、certifications（字符串数组）；summary（个人简介）；other（其他信息）。",
		"教育经历：提取全部经历（本科、硕士、博士等），按时间倒序排列，最近的在前。",
		"年份：start_year与end_year使用4位数字字符串，例如\"2018\"。",
		"学校名称：按原文完整照录，不要缩写或改写。",
		"学位：准确写出学位类型，例如\"学士学位\"、\"硕士学位\"、\"博士学位\"。",
		"GPA：如有GPA或成绩信息，原样写入gpa字段（字符串）。",
		"工作经历按时间倒序排列，最近的在前。",
		"输出示例：\n" + mustJSON(MockRecord()),
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt returns the résumé text, annotated with EducationHint when the
// text has an education section.
func BuildUserPrompt(text string) string {
	if HasEducationSection(text) {
		return text + EducationHint
	}
	return text
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

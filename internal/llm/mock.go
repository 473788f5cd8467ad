package llm

import "github.com/Tallisgo/JianLi-Tanuki/internal/entity"

// MockRecord is the fixed illustrative résumé returned when no API credential is
// configured. It doubles as the output example in the system prompt.
func MockRecord() *entity.ResumeRecord {
	s := entity.Ptr[string]
	return &entity.ResumeRecord{
		Name: s("张三"),
		Contact: &entity.ContactInfo{
			Phone:   s("13800138000"),
			Email:   s("zhangsan@example.com"),
			Address: s("北京市朝阳区"),
		},
		Education: []entity.Education{
			{
				Degree:      s("硕士学位"),
				Institution: s("清华大学"),
				Major:       s("计算机科学与技术"),
				StartYear:   s("2018"),
				EndYear:     s("2021"),
				GPA:         s("3.8/4.0"),
			},
			{
				Degree:      s("学士学位"),
				Institution: s("北京理工大学"),
				Major:       s("软件工程"),
				StartYear:   s("2014"),
				EndYear:     s("2018"),
				GPA:         s("3.6/4.0"),
			},
		},
		Experience: []entity.WorkEntry{
			{
				Title:       s("软件工程师"),
				Company:     s("科技公司"),
				StartDate:   s("2020-07"),
				EndDate:     s("2022-12"),
				Description: s("负责开发Web应用，使用React和Node.js技术栈"),
				Location:    s("北京"),
			},
		},
		Skills:         []string{"Python", "Java", "React", "Node.js", "机器学习"},
		Languages:      []string{"英语六级", "普通话"},
		Certifications: []string{"PMP证书"},
		Summary:        s("具有3年软件开发经验，熟悉前后端开发技术栈"),
		Other:          s("这是一个模拟的简历数据，用于测试系统功能"),
	}
}

package content

type Resume struct {
	PersonalInfo    PersonalInfo    `yaml:"personalInfo" json:"personalInfo"`
	Projects        []Project       `yaml:"projects" json:"projects"`
	SkillCategories []SkillCategory `yaml:"skillCategories" json:"skillCategories"`
	Experience      []Experience    `yaml:"experience" json:"experience"`
	Education       []Education     `yaml:"education" json:"education"`
	Certifications  []Certification `yaml:"certifications,omitempty" json:"certifications,omitempty"`
}

type PersonalInfo struct {
	Name     string            `yaml:"name" json:"name"`
	Roles    []string          `yaml:"roles" json:"roles"`
	Email    string            `yaml:"email" json:"email"`
	Location string            `yaml:"location" json:"location"`
	Bio      string            `yaml:"bio" json:"bio"`
	Social   map[string]string `yaml:"social" json:"social"`
}

type Project struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tech        []string `yaml:"tech" json:"tech"`
	Link        string   `yaml:"link,omitempty" json:"link,omitempty"`
}

type SkillCategory struct {
	Name   string   `yaml:"name" json:"name"`
	Icon   string   `yaml:"icon" json:"icon"`
	Skills []string `yaml:"skills" json:"skills"`
}

type Experience struct {
	Title        string   `yaml:"title" json:"title"`
	Company      string   `yaml:"company" json:"company"`
	Period       string   `yaml:"period" json:"period"`
	Description  string   `yaml:"description" json:"description"`
	Tech         []string `yaml:"tech,omitempty" json:"tech,omitempty"`
	Achievements []string `yaml:"achievements,omitempty" json:"achievements,omitempty"`
}

type Education struct {
	Degree      string `yaml:"degree" json:"degree"`
	Institution string `yaml:"institution" json:"institution"`
	Period      string `yaml:"period" json:"period"`
	Details     string `yaml:"details,omitempty" json:"details,omitempty"`
}

type Certification struct {
	Name   string `yaml:"name" json:"name"`
	Issuer string `yaml:"issuer" json:"issuer"`
	Date   string `yaml:"date" json:"date"`
}

// normalize replaces absent lists with empty ones so every section encodes
// as a JSON array.
func (r *Resume) normalize() {
	r.PersonalInfo.Roles = orEmpty(r.PersonalInfo.Roles)
	if r.PersonalInfo.Social == nil {
		r.PersonalInfo.Social = map[string]string{}
	}

	r.Projects = orEmpty(r.Projects)
	for i := range r.Projects {
		r.Projects[i].Tech = orEmpty(r.Projects[i].Tech)
	}
	r.SkillCategories = orEmpty(r.SkillCategories)
	for i := range r.SkillCategories {
		r.SkillCategories[i].Skills = orEmpty(r.SkillCategories[i].Skills)
	}
	r.Experience = orEmpty(r.Experience)
	r.Education = orEmpty(r.Education)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

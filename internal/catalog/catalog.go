// Package catalog 提供固定、只读的自动化模板目录。
package catalog

import (
	"errors"
	"strings"
)

// ErrNotFound 模板不存在。
var ErrNotFound = errors.New("template not found")

// ConfigParameter 模板的一个可配置参数。
type ConfigParameter struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
	Default any      `json:"default"`
}

// Template 列表与搜索接口返回的模板。
type Template struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	Category            string            `json:"category"`
	Complexity          string            `json:"complexity"`
	MakeScenarioID      string            `json:"makeScenarioId"`
	RequiredConnections []string          `json:"requiredConnections"`
	ConfigParameters    []ConfigParameter `json:"configParameters"`
	Thumbnail           string            `json:"thumbnail"`
}

// Detail 在 Template 基础上增加详情字段，由 Get 返回。
type Detail struct {
	Template
	LongDescription string   `json:"longDescription"`
	Benefits        []string `json:"benefits"`
	SetupSteps      []string `json:"setupSteps"`
}

// Catalog 可并发使用：内部数据只读，对外总是返回副本。
type Catalog struct {
	items []Detail
}

// New 返回内置模板目录。
func New() *Catalog {
	return &Catalog{items: fixtures()}
}

// NewWith 基于自定义条目创建目录。
func NewWith(items []Detail) *Catalog {
	cp := make([]Detail, len(items))
	for i := range items {
		cp[i] = items[i].clone()
	}
	return &Catalog{items: cp}
}

// List 按目录顺序返回全部模板。
func (c *Catalog) List() []Template {
	out := make([]Template, 0, len(c.items))
	for i := range c.items {
		out = append(out, c.items[i].Template.clone())
	}
	return out
}

// Get 返回单个模板的详情。
func (c *Catalog) Get(id string) (Detail, error) {
	for i := range c.items {
		if c.items[i].ID == id {
			return c.items[i].clone(), nil
		}
	}
	return Detail{}, ErrNotFound
}

// Search 按名称或描述的子串（不区分大小写）和分类（不区分大小写的精确匹配）过滤，
// 空条件匹配全部。
func (c *Catalog) Search(query, category string) []Template {
	q := strings.ToLower(strings.TrimSpace(query))
	cat := strings.TrimSpace(category)

	out := make([]Template, 0, len(c.items))
	for i := range c.items {
		t := &c.items[i].Template
		if q != "" &&
			!strings.Contains(strings.ToLower(t.Name), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			continue
		}
		if cat != "" && !strings.EqualFold(t.Category, cat) {
			continue
		}
		out = append(out, t.clone())
	}
	return out
}

// Categories 按目录顺序返回去重后的分类。
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool, len(c.items))
	var out []string
	for i := range c.items {
		if cat := c.items[i].Category; !seen[cat] {
			seen[cat] = true
			out = append(out, cat)
		}
	}
	return out
}

func (t Template) clone() Template {
	t.RequiredConnections = append([]string(nil), t.RequiredConnections...)
	params := make([]ConfigParameter, len(t.ConfigParameters))
	for i, p := range t.ConfigParameters {
		p.Options = append([]string(nil), p.Options...)
		params[i] = p
	}
	t.ConfigParameters = params
	return t
}

func (d Detail) clone() Detail {
	d.Template = d.Template.clone()
	d.Benefits = append([]string(nil), d.Benefits...)
	d.SetupSteps = append([]string(nil), d.SetupSteps...)
	return d
}

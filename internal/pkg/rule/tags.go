package rule

import "github.com/coffersTech/kwrule/internal/config"

// TagsParser builds "list_intersect" filters on the tags field.
type TagsParser struct {
	field string
}

func NewTagsParser(cfg config.Config) *TagsParser {
	return &TagsParser{field: cfg.TagsField}
}

// Parse passes tags through unchanged.
func (p *TagsParser) Parse(tags []string) ListIntersect {
	return ListIntersect{Field: p.field, List: tags}
}

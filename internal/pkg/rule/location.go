package rule

import "github.com/coffersTech/kwrule/internal/config"

// BasedLocationParser builds "in_list" filters on the based-location field.
type BasedLocationParser struct {
	field string
}

// NewBasedLocationParser creates a parser targeting cfg.LocationField.
func NewBasedLocationParser(cfg config.Config) *BasedLocationParser {
	return &BasedLocationParser{field: cfg.LocationField}
}

// Parse builds a filter matching a single location.
func (p *BasedLocationParser) Parse(location map[string]interface{}) InList {
	return InList{Field: p.field, List: []Location{pickLocation(location)}}
}

// ParseMultiple builds a filter matching any of locations.
func (p *BasedLocationParser) ParseMultiple(locations []map[string]interface{}) InList {
	list := make([]Location, 0, len(locations))
	for _, loc := range locations {
		list = append(list, pickLocation(loc))
	}
	return InList{Field: p.field, List: list}
}

// pickLocation keeps region, province, city and district. Missing and nil
// values are left out; values are not type checked.
func pickLocation(in map[string]interface{}) Location {
	out := make(Location, len(locationKeys))
	for _, k := range locationKeys {
		if v, ok := in[k]; ok && v != nil {
			out[k] = v
		}
	}
	return out
}

package config

import "github.com/pelletier/go-toml/v2"

// TOMLParser implements koanf.Parser on top of go-toml/v2.
type TOMLParser struct{}

func TOML() *TOMLParser {
	return &TOMLParser{}
}

func (p *TOMLParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *TOMLParser) Marshal(o map[string]interface{}) ([]byte, error) {
	return toml.Marshal(o)
}

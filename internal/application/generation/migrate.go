package generation

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// legacyFields are the flat keys written by older releases.
var legacyFields = []string{"provider", "model", "enableThinking", "showThinking"}

// MigrateSettings rewrites a legacy flat ai_settings document into the
// activeConfig/thinking shape. It reports whether anything changed.
func MigrateSettings(raw []byte) ([]byte, bool, error) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return raw, false, nil
	}
	doc := gjson.ParseBytes(raw)
	out := raw
	changed := false
	set := func(path string, value interface{}) error {
		next, err := sjson.SetBytes(out, path, value)
		if err != nil {
			return err
		}
		out = next
		changed = true
		return nil
	}

	if !doc.Get("activeConfig").Exists() {
		if p := doc.Get("provider"); p.Exists() && p.String() != "" {
			if err := set("activeConfig.provider", p.String()); err != nil {
				return raw, false, err
			}
			if err := set("activeConfig.model", doc.Get("model").String()); err != nil {
				return raw, false, err
			}
		}
	}

	if !doc.Get("thinking").Exists() {
		enabled, show := doc.Get("enableThinking"), doc.Get("showThinking")
		if enabled.Exists() || show.Exists() {
			if err := set("thinking.enabled", !enabled.Exists() || enabled.Bool()); err != nil {
				return raw, false, err
			}
			if err := set("thinking.showByDefault", show.Bool()); err != nil {
				return raw, false, err
			}
		}
	}

	if changed && !doc.Get("stream").Exists() {
		if err := set("stream", true); err != nil {
			return raw, false, err
		}
	}

	for _, field := range legacyFields {
		if !doc.Get(field).Exists() {
			continue
		}
		next, err := sjson.DeleteBytes(out, field)
		if err != nil {
			return raw, false, err
		}
		out = next
		changed = true
	}
	return out, changed, nil
}

package app

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/valyala/fasttemplate"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/timeframe"
	"ohlcv-watch/internal/watch"
)

// RenderFilename fills {symbol}, {timeframe} and {ext}. Unknown or unclosed
// placeholders are a ConfigError.
func RenderFilename(tmpl, symbol, tf, ext string) (string, error) {
	t, err := fasttemplate.NewTemplate(tmpl, "{", "}")
	if err != nil {
		return "", &model.ConfigError{Field: "filename-template", Value: tmpl, Reason: err.Error()}
	}
	return t.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		switch tag {
		case "symbol":
			return io.WriteString(w, symbol)
		case "timeframe":
			return io.WriteString(w, tf)
		case "ext":
			return io.WriteString(w, ext)
		default:
			return 0, &model.ConfigError{Field: "filename-template", Value: tmpl, Reason: "unknown placeholder {" + tag + "}"}
		}
	})
}

// BuildTargets creates one target per symbol and timeframe. Two targets that
// render to the same path are rejected, since both would write one file.
func BuildTargets(cfg *Config, ext string) ([]*watch.Target, error) {
	tfs, err := timeframe.ParseList(cfg.Timeframes)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]string)
	var targets []*watch.Target
	for _, sym := range cfg.Symbols {
		for _, tf := range tfs {
			name, err := RenderFilename(cfg.FilenameTemplate, sym, tf.Code, ext)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(name) == "" || strings.HasSuffix(name, "/") {
				return nil, &model.ConfigError{Field: "filename-template", Value: cfg.FilenameTemplate, Reason: "renders an empty file name"}
			}
			path := filepath.Clean(filepath.Join(cfg.OutputDir, name))
			if prev, ok := owners[path]; ok {
				return nil, &model.ConfigError{
					Field:  "filename-template",
					Value:  cfg.FilenameTemplate,
					Reason: fmt.Sprintf("%s and %s %s both render to %s", prev, sym, tf.Code, path),
				}
			}
			owners[path] = sym + " " + tf.Code
			targets = append(targets, watch.NewTarget(sym, tf, path))
			slog.Debug("target", "symbol", sym, "timeframe", tf.Code, "path", path)
		}
	}
	return targets, nil
}

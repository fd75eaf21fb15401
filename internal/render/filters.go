package render

import (
	"fmt"
	"os"
	"path/filepath"
	"reels-generator/internal/types"
	"strings"
)

// captionFilters writes each token to its own text file under dir and
// returns one drawtext filter per token, visible during [Start, End).
// textfile= sidesteps drawtext's escaping rules for arbitrary words.
func captionFilters(tokens []types.CaptionToken, cfg types.RenderConfig, dir string) ([]string, error) {
	filters := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		textPath := filepath.Join(dir, fmt.Sprintf("caption_%03d.txt", i))
		if err := os.WriteFile(textPath, []byte(tok.Text), 0o644); err != nil {
			return nil, err
		}
		opts := []string{
			"textfile=" + quoteFilterValue(textPath),
			fmt.Sprintf("fontsize=%d", cfg.FontSize),
			"fontcolor=" + cfg.FontColor,
			fmt.Sprintf("borderw=%d", cfg.OutlineWidth),
			"bordercolor=" + cfg.OutlineColor,
			"x=(w-text_w)/2",
			"y=(h-text_h)/2",
			fmt.Sprintf("enable='gte(t,%.3f)*lt(t,%.3f)'", tok.Start, tok.End),
		}
		filters = append(filters, drawtext(opts, cfg.FontPath))
	}
	return filters, nil
}

// brandFilter draws a persistent lower-third line at reduced opacity.
func brandFilter(cfg types.RenderConfig, dir string) (string, error) {
	textPath := filepath.Join(dir, "brand.txt")
	if err := os.WriteFile(textPath, []byte(cfg.BrandText), 0o644); err != nil {
		return "", err
	}
	opts := []string{
		"textfile=" + quoteFilterValue(textPath),
		fmt.Sprintf("fontsize=%d", cfg.BrandFontSize),
		fmt.Sprintf("fontcolor=%s@%.2f", cfg.FontColor, cfg.BrandOpacity),
		fmt.Sprintf("borderw=%d", max(1, cfg.OutlineWidth/2)),
		fmt.Sprintf("bordercolor=%s@%.2f", cfg.OutlineColor, cfg.BrandOpacity),
		"x=(w-text_w)/2",
		fmt.Sprintf("y=h*%.3f", cfg.BrandY),
	}
	return drawtext(opts, cfg.FontPath), nil
}

// drawtext renders text verbatim: expansion is off so '%' sequences in
// captions are not read as drawtext functions.
func drawtext(opts []string, fontPath string) string {
	opts = append(opts, "expansion=none")
	if fontPath != "" {
		opts = append([]string{"fontfile=" + quoteFilterValue(fontPath)}, opts...)
	}
	return "drawtext=" + strings.Join(opts, ":")
}

// quoteFilterValue quotes a filter option so ':' and ',' in paths stay
// literal. Windows separators are normalized since '\' is an escape.
func quoteFilterValue(v string) string {
	v = filepath.ToSlash(v)
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

// videoFilterChain joins the per-layer filters into the graph applied to
// the background stream.
func videoFilterChain(cfg types.RenderConfig, layers []string) string {
	chain := []string{
		fmt.Sprintf("scale=%d:%d", cfg.Width, cfg.Height),
		"setsar=1",
	}
	chain = append(chain, layers...)
	chain = append(chain, "format=yuv420p")
	return "[0:v]" + strings.Join(chain, ",") + "[v]"
}

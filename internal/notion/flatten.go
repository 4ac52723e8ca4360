package notion

import (
	"fmt"
	"strings"
)

// Flatten projects a block tree onto an ordered sequence of text fragments,
// one entry per rendered block. Unrecognized kinds degrade to a labeled
// fallback fragment; nothing is silently dropped.
func Flatten(blocks []Block) []string {
	var fragments []string
	for i := range blocks {
		block := &blocks[i]
		childrenConsumed := false

		switch block.Type {
		case "paragraph", "heading_1", "heading_2", "heading_3",
			"bulleted_list_item", "numbered_list_item", "toggle", "quote", "callout":
			rendered := RenderRichText(block.richTextRuns())
			if strings.TrimSpace(rendered) != "" {
				fragments = append(fragments, rendered)
			}

		case "to_do":
			// Rendered even when empty so the checkbox state survives.
			checkbox := "[ ]"
			var runs []RichText
			if block.ToDo != nil {
				runs = block.ToDo.RichText
				if block.ToDo.Checked {
					checkbox = "[x]"
				}
			}
			fragments = append(fragments, checkbox+" "+plainText(runs))

		case "equation":
			expression := ""
			if block.Equation != nil {
				expression = block.Equation.Expression
			}
			fragments = append(fragments, fmt.Sprintf("[Equation: %s]", expression))

		case "code":
			language := "plain"
			var runs []RichText
			if block.Code != nil {
				if block.Code.Language != "" {
					language = block.Code.Language
				}
				runs = block.Code.runs()
			}
			fragments = append(fragments, fmt.Sprintf("[Code: %s]\n%s", language, plainText(runs)))

		case "table":
			if len(block.Children) > 0 {
				fragments = append(fragments, "Table:")
				fragments = append(fragments, Flatten(block.Children)...)
				childrenConsumed = true
			}

		case "table_row":
			var cells []string
			if block.TableRow != nil {
				for _, cell := range block.TableRow.Cells {
					cells = append(cells, plainText(cell))
				}
			}
			fragments = append(fragments, strings.Join(cells, "; "))

		case "image", "video", "file", "pdf", "audio":
			if media := block.mediaPayload(); media != nil {
				if location := media.url(); location != "" {
					fragments = append(fragments, fmt.Sprintf("[%s] %s", capitalize(block.Type), location))
				}
			}

		case "bookmark", "embed", "link_preview":
			if link := block.linkPayload(); link != nil {
				fragments = append(fragments, fmt.Sprintf("[%s] %s", capitalize(block.Type), link.URL))
			}

		case "child_page":
			title := "Untitled"
			if block.ChildPage != nil && block.ChildPage.Title != "" {
				title = block.ChildPage.Title
			}
			fragments = append(fragments, "[Child Page] "+title)

		case "divider":
			fragments = append(fragments, "---")

		case "synced_block":
			if len(block.Children) > 0 {
				fragments = append(fragments, Flatten(block.Children)...)
				childrenConsumed = true
			}

		case "unsupported":
			fragments = append(fragments, "[Unsupported block]")

		default:
			fragments = append(fragments, fmt.Sprintf("[Unhandled block type: %s]", block.Type))
		}

		// Blocks carry inline content and nested children at once; the
		// children follow their parent's fragment in document order.
		if !childrenConsumed && len(block.Children) > 0 {
			fragments = append(fragments, Flatten(block.Children)...)
		}
	}
	return fragments
}

// RenderRichText concatenates text runs, wrapping each in markdown-style
// markers for its annotations. Wrappers compose, link outermost.
func RenderRichText(runs []RichText) string {
	var builder strings.Builder
	for _, run := range runs {
		text := run.PlainText
		if run.Annotations.Bold {
			text = "**" + text + "**"
		}
		if run.Annotations.Italic {
			text = "*" + text + "*"
		}
		if run.Annotations.Underline {
			text = "__" + text + "__"
		}
		if run.Annotations.Strikethrough {
			text = "~~" + text + "~~"
		}
		if run.Href != "" {
			text = fmt.Sprintf("[%s](%s)", text, run.Href)
		}
		builder.WriteString(text)
	}
	return builder.String()
}

func plainText(runs []RichText) string {
	var builder strings.Builder
	for _, run := range runs {
		builder.WriteString(run.PlainText)
	}
	return builder.String()
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + strings.ToLower(value[1:])
}

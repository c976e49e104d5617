package catalog

import "strings"

// Fixed user-facing messages for the two empty outcomes. They must stay distinct.
const (
	// NoResultsMessage is returned when similarity search yields nothing.
	NoResultsMessage = "Không tìm thấy sản phẩm nào phù hợp."
	// NoMatchMessage is returned when no retrieved candidate passes the filter.
	NoMatchMessage = "Hiện không có sản phẩm nào phù hợp với yêu cầu của bạn."
)

const (
	unknownValue   = "Không rõ"
	blockSeparator = "---"
)

// Labels of the context block, in rendering order.
const (
	LabelName       = "📦 Tên sản phẩm:"
	LabelColor      = "🎨 Màu:"
	LabelMemory     = "💾 RAM:"
	LabelPrice      = "💸 Giá:"
	LabelStatus     = "📋 Trạng thái:"
	LabelAttributes = "⚙️ Thuộc tính khác:"
)

// FormatContext renders candidates into the context block handed to the
// answer model: one labeled field per line, attributes as bulleted lines, and
// each block closed by a "---" line. Blocks are separated by a blank line.
func FormatContext(candidates []ProductCandidate) string {
	blocks := make([]string, 0, len(candidates))
	for _, c := range candidates {
		blocks = append(blocks, formatBlock(c))
	}
	return strings.Join(blocks, "\n\n")
}

func formatBlock(c ProductCandidate) string {
	var b strings.Builder
	writeField(&b, LabelName, c.Name)
	writeField(&b, LabelColor, c.Color)
	writeField(&b, LabelMemory, c.Memory)
	writeField(&b, LabelPrice, c.Price)
	writeField(&b, LabelStatus, c.Status)

	b.WriteString(LabelAttributes)
	b.WriteByte('\n')
	for _, item := range SplitAttributes(c.Attributes) {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteByte('\n')
	}
	b.WriteString(blockSeparator)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = unknownValue
	}
	b.WriteString(label)
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

// SplitAttributes splits raw attribute text into display entries. ';' is the
// delimiter when present, since values may themselves contain commas; ','
// otherwise. When any entry is a "key: value" pair, entries without ':' are
// dropped as noise. Text made only of bare feature tags keeps every tag.
func SplitAttributes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	sep := ","
	if strings.Contains(raw, ";") {
		sep = ";"
	}

	var entries []string
	keyed := false
	for _, part := range strings.Split(raw, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, ":") {
			keyed = true
		}
		entries = append(entries, part)
	}

	if !keyed {
		return entries
	}

	out := entries[:0]
	for _, e := range entries {
		if strings.Contains(e, ":") {
			out = append(out, e)
		}
	}
	return out
}

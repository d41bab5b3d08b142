package termcolor

import "github.com/rybkr/sumtree/internal/diffstream"

// DiffKind colors a diff record's kind label the way status lines in
// backup/drift tools conventionally do: additions green, removals red,
// changes yellow, unchanged entries left plain.
func (w *Writer) DiffKind(k diffstream.Kind) string {
	switch k {
	case diffstream.Added:
		return w.Green(k.String())
	case diffstream.Removed:
		return w.Red(k.String())
	case diffstream.Changed:
		return w.Yellow(k.String())
	default:
		return k.String()
	}
}

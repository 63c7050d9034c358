package labels

import "strings"

// BuiltinPrefix selects a compiled-in label table instead of a file, e.g. "builtin:coco".
const BuiltinPrefix = "builtin:"

// COCO is the 80-class COCO detection label set in model output order (no background class).
var COCO = Table{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

var builtins = map[string]Table{
	"coco": COCO,
}

// Builtin returns a copy of the compiled-in table with the given name.
//
// Arguments:
//   - name: The table name, with or without BuiltinPrefix (case-insensitive).
//
// Returns:
//   - Table: The table.
//   - bool: False if no table has that name.
func Builtin(name string) (Table, bool) {
	name = strings.ToLower(strings.TrimPrefix(name, BuiltinPrefix))
	table, ok := builtins[name]
	if !ok {
		return nil, false
	}
	return append(Table(nil), table...), true
}

// Open resolves a label source: "" or "-" means no table, a BuiltinPrefix source
// selects a compiled-in table, and anything else is read as a label file.
//
// Arguments:
//   - source: The label source.
//
// Returns:
//   - Table: The table, or nil for no table.
//   - error: An error if the builtin is unknown or the file cannot be read.
func Open(source string) (Table, error) {
	switch {
	case source == "" || source == "-":
		return nil, nil
	case strings.HasPrefix(source, BuiltinPrefix):
		table, ok := Builtin(source)
		if !ok {
			return nil, &UnknownBuiltinError{Name: source}
		}
		return table, nil
	default:
		return Load(source)
	}
}

// UnknownBuiltinError is returned by Open for an unrecognised builtin table name.
type UnknownBuiltinError struct {
	Name string
}

func (e *UnknownBuiltinError) Error() string {
	return "unknown builtin label table: " + e.Name
}

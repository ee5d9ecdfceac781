package xlog

import "log/slog"

// Attr is an alias of slog.Attr so AttrReplacer implementations can be used
// directly as a slog.HandlerOptions.ReplaceAttr function.
type Attr = slog.Attr

// argsToAttrSlice converts a Log-style argument list (a mix of slog.Attr
// values and alternating key/value pairs) into a slice of slog.Attr.
func argsToAttrSlice(args []any) []slog.Attr {
	var attrs []slog.Attr
	for len(args) > 0 {
		switch v := args[0].(type) {
		case slog.Attr:
			attrs = append(attrs, v)
			args = args[1:]
		case string:
			if len(args) == 1 {
				attrs = append(attrs, slog.String("!BADKEY", v))
				args = nil
				break
			}
			attrs = append(attrs, slog.Any(v, args[1]))
			args = args[2:]
		default:
			attrs = append(attrs, slog.Any("!BADKEY", v))
			args = args[1:]
		}
	}
	return attrs
}

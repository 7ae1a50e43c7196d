package testmodel

import (
	"fmt"
	"reflect"
)

// opaquePreview renders a short, stable label for a value that has no
// faithful JSON form, mirroring the host runtime's "[Function]" style
// previews for unserializable assertion operands.
func opaquePreview(raw interface{}) string {
	if raw == nil {
		return "[Null]"
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Func:
		return "[Function]"
	case reflect.Chan:
		return "[Channel]"
	case reflect.Ptr, reflect.UnsafePointer:
		if rv.IsNil() {
			return "[Null]"
		}
		return fmt.Sprintf("[Pointer %s]", rv.Type().String())
	default:
		return fmt.Sprintf("[%s]", rv.Type().String())
	}
}

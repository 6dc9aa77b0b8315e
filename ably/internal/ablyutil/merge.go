package ablyutil

import "reflect"

// Merge copies every non-zero field of the struct pointed to by src over the
// corresponding field of the struct pointed to by dst. Both must point to
// values of the same struct type. A nil src leaves dst untouched.
//
// Nested structs are copied whole when non-zero.
func Merge(dst, src interface{}) {
	vsrc := reflect.ValueOf(src)
	if vsrc.Kind() == reflect.Ptr && vsrc.IsNil() {
		return
	}
	vsrc = vsrc.Elem()
	vdst := reflect.ValueOf(dst).Elem()
	for i := 0; i < vdst.NumField(); i++ {
		if !vdst.Field(i).CanSet() {
			continue
		}
		if field := vsrc.Field(i); !field.IsZero() {
			vdst.Field(i).Set(field)
		}
	}
}

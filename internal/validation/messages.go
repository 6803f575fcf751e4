package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// namedMessages backs msg tags of the form "@name", for messages shared by
// several request types.
var namedMessages = map[string]string{
	"password": PasswordMessage,
}

// tagMessage resolves a msg tag value, expanding "@name" references.
func tagMessage(tag string) string {
	if name, ok := strings.CutPrefix(tag, "@"); ok {
		return namedMessages[name]
	}
	return tag
}

func messageFor(s any, fe validator.FieldError) string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if msg := tagMessage(f.Tag.Get("msg")); msg != "" {
				return msg
			}
		}
	}
	return "Invalid " + fe.Field() + " Provided."
}

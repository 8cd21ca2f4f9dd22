// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagBinder is implemented by types that bind their own flags manually.
// When a struct field's type implements FlagBinder, [BindFlags] calls
// AddFlags instead of reflecting struct tags.
type FlagBinder interface {
	AddFlags(flagSet *pflag.FlagSet)
}

// FlagsFromParams creates a [pflag.FlagSet] with flags bound to the tagged
// fields of params. params must be a pointer to a struct. Panics on
// invalid input (programming error, not runtime data).
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers pflag entries for each tagged field in params.
// params must be a pointer to a struct.
//
// # Struct tags
//
//   - flag:"name" or flag:"name,n": the long flag name and optional
//     single-character shorthand. Fields without a flag tag are skipped.
//   - desc:"help text": the flag's help description.
//   - default:"value": the default value, parsed according to the
//     field's Go type. If omitted, the type's zero value is used.
//
// # Supported field types
//
// string, bool, int, float64, [time.Duration], []string.
//
// A []string flag is repeated to collect values and never splits on
// commas, so "--var userId=@a:x,y" keeps the comma. A default tag on a
// []string field is split on commas.
//
// # Struct composition
//
// Struct fields whose pointer implements [FlagBinder] are bound via
// AddFlags. Other embedded structs are bound recursively, which is how
// every command picks up [ConsoleFlags].
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStructFields(value.Elem(), flagSet)
}

func bindStructFields(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()

	for i := range structType.NumField() {
		field := structType.Field(i)
		fieldValue := structValue.Field(i)

		if field.Type.Kind() == reflect.Struct && field.IsExported() && fieldValue.CanAddr() {
			if binder, ok := fieldValue.Addr().Interface().(FlagBinder); ok {
				binder.AddFlags(flagSet)
				continue
			}
		}

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStructFields(fieldValue, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}

		flagTag := field.Tag.Get("flag")
		if flagTag == "" {
			continue
		}
		if !fieldValue.CanAddr() {
			return fmt.Errorf("field %s: not addressable", field.Name)
		}

		name, shorthand, _ := strings.Cut(flagTag, ",")
		spec := flagSpec{
			name:         name,
			shorthand:    shorthand,
			description:  field.Tag.Get("desc"),
			defaultValue: field.Tag.Get("default"),
		}
		if err := spec.bind(fieldValue.Addr().Interface(), flagSet); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}

	return nil
}

// flagSpec is the parsed tag set of one field.
type flagSpec struct {
	name         string
	shorthand    string
	description  string
	defaultValue string
}

func (s flagSpec) bind(pointer any, flagSet *pflag.FlagSet) error {
	switch target := pointer.(type) {
	case *string:
		flagSet.StringVarP(target, s.name, s.shorthand, s.defaultValue, s.description)

	case *bool:
		value, err := parseDefault(s, strconv.ParseBool)
		if err != nil {
			return err
		}
		flagSet.BoolVarP(target, s.name, s.shorthand, value, s.description)

	case *int:
		value, err := parseDefault(s, strconv.Atoi)
		if err != nil {
			return err
		}
		flagSet.IntVarP(target, s.name, s.shorthand, value, s.description)

	case *float64:
		value, err := parseDefault(s, func(text string) (float64, error) {
			return strconv.ParseFloat(text, 64)
		})
		if err != nil {
			return err
		}
		flagSet.Float64VarP(target, s.name, s.shorthand, value, s.description)

	case *time.Duration:
		value, err := parseDefault(s, time.ParseDuration)
		if err != nil {
			return err
		}
		flagSet.DurationVarP(target, s.name, s.shorthand, value, s.description)

	case *[]string:
		var value []string
		if s.defaultValue != "" {
			value = strings.Split(s.defaultValue, ",")
		}
		flagSet.StringArrayVarP(target, s.name, s.shorthand, value, s.description)

	default:
		return fmt.Errorf("unsupported type %T for flag --%s", pointer, s.name)
	}
	return nil
}

// parseDefault parses the default tag, treating an empty tag as the
// zero value.
func parseDefault[T any](spec flagSpec, parse func(string) (T, error)) (T, error) {
	var zero T
	if spec.defaultValue == "" {
		return zero, nil
	}
	value, err := parse(spec.defaultValue)
	if err != nil {
		return zero, fmt.Errorf("default for --%s: %w", spec.name, err)
	}
	return value, nil
}

package openapi

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

var timeType = reflect.TypeOf(time.Time{})

// schemaRegistry turns Go types into component schemas. Named structs become
// "#/components/schemas/<Name>" references; a second type sharing a name gets a numeric
// suffix.
type schemaRegistry struct {
	names map[reflect.Type]string
	taken map[string]bool
}

func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{
		names: make(map[reflect.Type]string),
		taken: make(map[string]bool),
	}
}

func (r *schemaRegistry) ref(example any, components openapi3.Schemas) *openapi3.SchemaRef {
	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return r.typeRef(reflect.TypeOf(example), components)
}

func (r *schemaRegistry) typeRef(t reflect.Type, components openapi3.Schemas) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.Pointer:
		inner := r.typeRef(t.Elem(), components)
		if inner.Ref != "" {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{
				AllOf:    openapi3.SchemaRefs{inner},
				Nullable: true,
			}}
		}
		inner.Value.Nullable = true
		return inner
	case reflect.String:
		return openapi3.NewStringSchema().NewRef()
	case reflect.Bool:
		return openapi3.NewBoolSchema().NewRef()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return openapi3.NewIntegerSchema().NewRef()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().WithMin(0).NewRef()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema().NewRef()
	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:  &openapi3.Types{openapi3.TypeArray},
			Items: r.typeRef(t.Elem(), components),
		}}
	case reflect.Map:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:                 &openapi3.Types{openapi3.TypeObject},
			AdditionalProperties: openapi3.AdditionalProperties{Schema: r.typeRef(t.Elem(), components)},
		}}
	case reflect.Struct:
		if t == timeType {
			return openapi3.NewDateTimeSchema().NewRef()
		}
		return r.structRef(t, components)
	default:
		return (&openapi3.Schema{}).NewRef()
	}
}

func (r *schemaRegistry) structRef(t reflect.Type, components openapi3.Schemas) *openapi3.SchemaRef {
	if t.Name() == "" {
		return r.buildStruct(t, components).NewRef()
	}

	name, ok := r.names[t]
	if !ok {
		name = r.claim(t.Name())
		r.names[t] = name
		// placeholder so self-referencing types resolve to the ref
		components[name] = openapi3.NewObjectSchema().NewRef()
		components[name] = r.buildStruct(t, components).NewRef()
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func (r *schemaRegistry) claim(base string) string {
	name := base
	for suffix := 2; r.taken[name]; suffix++ {
		name = base + strconv.Itoa(suffix)
	}
	r.taken[name] = true
	return name
}

func (r *schemaRegistry) buildStruct(t reflect.Type, components openapi3.Schemas) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	schema.Properties = make(openapi3.Schemas)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if field.Anonymous && name == "" {
			embedded := field.Type
			if embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				inner := r.buildStruct(embedded, components)
				for prop, ref := range inner.Properties {
					schema.Properties[prop] = ref
				}
				schema.Required = append(schema.Required, inner.Required...)
				continue
			}
		}

		if name == "" {
			name = field.Name
		}
		schema.Properties[name] = r.typeRef(field.Type, components)
		if !strings.Contains(opts, "omitempty") {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema
}

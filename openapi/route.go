package openapi

import (
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/tech-arch1tect/newsdesk/response"
)

type Operation struct {
	doc    *Document
	method string
	path   string
	op     *openapi3.Operation
}

func (o *Operation) pathParams() {
	for _, part := range strings.Split(o.path, "/") {
		name, ok := strings.CutPrefix(part, ":")
		if !ok {
			continue
		}
		o.op.Parameters = append(o.op.Parameters, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:     name,
				In:       openapi3.ParameterInPath,
				Required: true,
				Schema:   openapi3.NewIntegerSchema().WithMin(1).NewRef(),
			},
		})
	}
}

func (o *Operation) Summary(summary string) *Operation {
	o.op.Summary = summary
	return o
}

func (o *Operation) Description(description string) *Operation {
	o.op.Description = description
	return o
}

func (o *Operation) Tags(tags ...string) *Operation {
	o.op.Tags = append(o.op.Tags, tags...)
	return o
}

func (o *Operation) ID(id string) *Operation {
	o.op.OperationID = id
	return o
}

func (o *Operation) Query(name, description string) *Operation {
	o.op.Parameters = append(o.op.Parameters, &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          openapi3.ParameterInQuery,
			Description: description,
			Schema:      openapi3.NewStringSchema().NewRef(),
		},
	})
	return o
}

func (o *Operation) Body(example any) *Operation {
	o.op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchemaRef(o.doc.schemaFor(example)),
	}
	return o
}

// OptionalBody documents a request body the caller may omit.
func (o *Operation) OptionalBody(example any) *Operation {
	o.Body(example)
	o.op.RequestBody.Value.Required = false
	return o
}

// Response documents a success response. The example is the envelope's data field;
// a nil example documents an envelope without data.
func (o *Operation) Response(status int, example any, description string) *Operation {
	envelope := openapi3.NewObjectSchema().
		WithProperty("success", openapi3.NewBoolSchema()).
		WithProperty("timestamp", openapi3.NewDateTimeSchema())
	if example != nil {
		envelope.WithPropertyRef("data", o.doc.schemaFor(example))
	}

	o.op.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription(description).
			WithJSONSchema(envelope),
	})
	return o
}

// Errors documents failure responses, all of which share the error envelope.
func (o *Operation) Errors(statuses ...int) *Operation {
	ref := o.doc.schemaFor(response.Envelope{})
	for _, status := range statuses {
		o.op.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription(statusDescription(status)).
				WithJSONSchemaRef(ref),
		})
	}
	return o
}

func (o *Operation) Secured(schemes ...string) *Operation {
	requirements := openapi3.NewSecurityRequirements()
	for _, scheme := range schemes {
		requirements.With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	}
	o.op.Security = requirements
	return o
}

func (o *Operation) Register() {
	if len(o.op.Responses.Map()) == 0 {
		o.Response(200, nil, "OK")
	}
	o.doc.addOperation(o.method, o.path, o.op)
}

func statusDescription(status int) string {
	switch status {
	case 400:
		return "Invalid request"
	case 401:
		return "Missing or invalid credentials"
	case 403:
		return "Not allowed"
	case 404:
		return "Not found"
	case 409:
		return "Conflict"
	case 429:
		return "Rate limited; see Retry-After"
	case 501:
		return "Not implemented"
	default:
		return "Error"
	}
}

// Package annotate holds typed accessors for the annotation options schema,
// written the way a code generator emits them: descriptors are built once
// when the package loads, and each struct gets a thin reader and builder.
package annotate

import (
	"strconv"

	"github.com/andreyvit/capn"
)

var (
	Schema = capn.NewSchema()

	BoolOptionEnum = Schema.NewEnum("BoolOption", "false", "true", "notset")

	optionsConvertCase *capn.Field

	OptionsType = capn.DefineStruct(Schema, "Options", 1, 0, func(b *capn.LayoutBuilder) {
		optionsConvertCase = b.Field("convertCase", BoolOptionEnum.Type(), 0, capn.Default("notset"))
	})
)

type BoolOption uint16

const (
	BoolOptionFalse BoolOption = iota
	BoolOptionTrue
	BoolOptionNotset
)

func (v BoolOption) String() string {
	if name, ok := BoolOptionEnum.ValueName(uint16(v)); ok {
		return name
	}
	return strconv.Itoa(int(v))
}

type Options struct {
	s capn.Struct
}

// DecodeOptions reads Options from a framed message.
func DecodeOptions(data []byte) (Options, error) {
	m, err := capn.ReadMessage(data, capn.ReadOptions{})
	if err != nil {
		return Options{}, err
	}
	s, err := m.Root(OptionsType)
	if err != nil {
		return Options{}, err
	}
	return Options{s}, nil
}

// OptionsFromStruct wraps a struct read elsewhere, e.g. a field of another
// message.
func OptionsFromStruct(s capn.Struct) Options {
	return Options{s.WithType(OptionsType)}
}

func (o Options) Struct() capn.Struct { return o.s }

func (o Options) ConvertCase() BoolOption {
	return BoolOption(o.s.Enum(optionsConvertCase))
}

func (o Options) String() string { return o.s.String() }

type OptionsBuilder struct {
	sb capn.StructBuilder
}

// NewOptions starts a message whose root is Options.
func NewOptions() OptionsBuilder {
	b := capn.NewBuilder(16)
	return OptionsBuilder{b.NewRoot(OptionsType)}
}

func (ob OptionsBuilder) SetConvertCase(v BoolOption) OptionsBuilder {
	ob.sb.SetEnum(optionsConvertCase, uint16(v))
	return ob
}

func (ob OptionsBuilder) Options() Options {
	return Options{ob.sb.AsStruct()}
}

// Finalize returns the framed message.
func (ob OptionsBuilder) Finalize() []byte {
	return ob.sb.Builder().Finalize()
}

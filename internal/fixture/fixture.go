// Package fixture holds interface models shared by tests.
package fixture

import "github.com/wippyai/ffi-bindgen/ir"

// Geometry is the Point/Color/Shape component: a record of floats, an
// enum used as an error type, and an object the host can implement.
func Geometry() *ir.ComponentInterface {
	const mp = "geometry"
	point := ir.Record{ModulePath: mp, Name: "Point"}
	color := ir.Enum{ModulePath: mp, Name: "Color"}
	shape := ir.Object{ModulePath: mp, Name: "Shape", Imp: ir.ImplCallbackTrait}

	return &ir.ComponentInterface{
		Namespace:  "geometry",
		ModulePath: mp,
		Records: []ir.RecordDef{{
			Name: "Point",
			Fields: []ir.Field{
				{Name: "x", Type: ir.Float64},
				{Name: "y", Type: ir.Float64},
			},
		}},
		Enums: []ir.EnumDef{{
			Name:     "Color",
			Variants: []ir.Variant{{Name: "Red"}, {Name: "Green"}, {Name: "Blue"}},
		}},
		Objects: []ir.ObjectDef{{
			Name: "Shape",
			Imp:  ir.ImplCallbackTrait,
			Constructors: []ir.Function{{
				Name:      "new",
				Arguments: []ir.Argument{{Name: "origin", Type: point}},
			}},
			Methods: []ir.Function{
				{Name: "area", Return: ir.Float64},
				{Name: "paint", Arguments: []ir.Argument{{Name: "color", Type: color}}, Throws: color},
			},
		}},
		Functions: []ir.Function{{
			Name:      "centroid",
			Arguments: []ir.Argument{{Name: "shape", Type: shape}},
			Return:    point,
		}},
	}
}

// Events is a component with a sync and an async callback interface and
// an async top-level function.
func Events() *ir.ComponentInterface {
	const mp = "events"
	listener := ir.CallbackInterface{ModulePath: mp, Name: "Listener"}
	fetcher := ir.CallbackInterface{ModulePath: mp, Name: "Fetcher"}

	return &ir.ComponentInterface{
		Namespace:  "events",
		ModulePath: mp,
		CallbackInterfaces: []ir.CallbackInterfaceDef{
			{
				Name: "Listener",
				Methods: []ir.Function{
					{Name: "on_event", Arguments: []ir.Argument{{Name: "name", Type: ir.String}}},
					{Name: "priority", Return: ir.Int32},
				},
			},
			{
				Name: "Fetcher",
				Methods: []ir.Function{
					{Name: "fetch", Arguments: []ir.Argument{{Name: "url", Type: ir.String}}, Return: ir.Bytes, Async: true},
				},
			},
		},
		Functions: []ir.Function{
			{Name: "subscribe", Arguments: []ir.Argument{{Name: "listener", Type: listener}}},
			{Name: "download", Arguments: []ir.Argument{{Name: "fetcher", Type: fetcher}, {Name: "urls", Type: ir.Sequence{Inner: ir.String}}}, Return: ir.Optional{Inner: ir.Bytes}, Async: true},
		},
	}
}

// Consumer references Point from Geometry through an External type.
func Consumer() *ir.ComponentInterface {
	const mp = "consumer"
	point := ir.External{ModulePath: "geometry", Name: "Point"}
	return &ir.ComponentInterface{
		Namespace:  "consumer",
		ModulePath: mp,
		Records: []ir.RecordDef{{
			Name:   "Path",
			Fields: []ir.Field{{Name: "points", Type: ir.Sequence{Inner: point}}},
		}},
		Functions: []ir.Function{{
			Name:      "first",
			Arguments: []ir.Argument{{Name: "path", Type: ir.Record{ModulePath: mp, Name: "Path"}}},
			Return:    ir.Optional{Inner: point},
		}},
	}
}

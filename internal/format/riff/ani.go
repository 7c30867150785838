package riff

import "github.com/binform/carve"

var aniChunks = chunkSet("IART", "ICON", "INAM", "LIST", "anih", "rate", "seq ")

// ANI returns a parser for the Windows animated-cursor format.
func ANI() carve.Parser {
	return carve.ParserFunc{FormatName: "ani", Fn: func(in carve.Input) carve.Result {
		out, err := Parse(in, Spec{AppName: "ANI", AppTag: FourCC{'A', 'C', 'O', 'N'}, ValidChunks: aniChunks})
		if err != nil {
			return carve.Failure(err)
		}
		if out.WholeFile {
			return carve.Success(out.Consumed, nil, carve.NewTagSet(carve.TagRIFF, carve.TagANI, carve.TagGraphics))
		}
		carvedTags := carve.NewTagSet(carve.TagANI, carve.TagGraphics, carve.TagUnpacked)
		return carve.Success(out.Consumed, []carve.Carved{{Path: out.CarvedPath, Tags: carvedTags}}, carve.NewTagSet())
	}}
}

package riff

import "github.com/binform/carve"

var webpChunks = chunkSet("ALPH", "ANIM", "ANMF", "EXIF", "FRGM", "ICCP", "VP8 ", "VP8L", "VP8X", "XMP ")

// WebP returns a parser for the WebP image format.
func WebP() carve.Parser {
	return carve.ParserFunc{FormatName: "webp", Fn: func(in carve.Input) carve.Result {
		out, err := Parse(in, Spec{AppName: "WebP", AppTag: FourCC{'W', 'E', 'B', 'P'}, ValidChunks: webpChunks})
		if err != nil {
			return carve.Failure(err)
		}
		if out.WholeFile {
			return carve.Success(out.Consumed, nil, carve.NewTagSet(carve.TagRIFF, carve.TagWebP, carve.TagGraphics))
		}
		carvedTags := carve.NewTagSet(carve.TagWebP, carve.TagGraphics, carve.TagUnpacked)
		return carve.Success(out.Consumed, []carve.Carved{{Path: out.CarvedPath, Tags: carvedTags}}, carve.NewTagSet())
	}}
}

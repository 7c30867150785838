package riff

import "github.com/binform/carve"

var wavChunks = chunkSet("LGWV", "bext", "cue ", "data", "fact", "fmt ", "inst", "labl", "list", "ltxt", "note", "plst", "smpl")

// WAV returns a parser for the WAVE audio format.
func WAV() carve.Parser {
	return carve.ParserFunc{FormatName: "wav", Fn: func(in carve.Input) carve.Result {
		out, err := Parse(in, Spec{AppName: "WAV", AppTag: FourCC{'W', 'A', 'V', 'E'}, ValidChunks: wavChunks})
		if err != nil {
			return carve.Failure(err)
		}
		if out.WholeFile {
			return carve.Success(out.Consumed, nil, carve.NewTagSet(carve.TagRIFF, carve.TagWAV, carve.TagAudio))
		}
		carvedTags := carve.NewTagSet(carve.TagWAV, carve.TagAudio, carve.TagUnpacked)
		return carve.Success(out.Consumed, []carve.Carved{{Path: out.CarvedPath, Tags: carvedTags}}, carve.NewTagSet())
	}}
}

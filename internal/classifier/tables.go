package classifier

// provenanceTags are normalized tag names that may carry generation
// metadata: tool identifiers, free-text fields and tool-specific PNG keys.
var provenanceTags = map[string]bool{
	"Software":            true,
	"ImageDescription":    true,
	"UserComment":         true,
	"Artist":              true,
	"Copyright":           true,
	"ProcessingSoftware":  true,
	"OriginalRawFileName": true,
	"DocumentName":        true,
	"parameters":          true,
	"prompt":              true,
	"negative_prompt":     true,
	"workflow":            true,
	"Comment":             true,
	"Description":         true,
	"Title":               true,
	"Author":              true,
	"Creation Time":       true,
	"Source":              true,
}

// softwareTags identify the producing tool and are included unconditionally.
var softwareTags = map[string]bool{
	"Software":           true,
	"ProcessingSoftware": true,
}

// generationKeywords are lowercase substrings naming generation tools or
// describing machine-generated content.
var generationKeywords = []string{
	"stable diffusion",
	"midjourney",
	"dall-e",
	"dalle",
	"ai generated",
	"artificial intelligence",
	"neural network",
	"gan",
	"diffusion",
	"automatic1111",
	"invokeai",
	"comfyui",
	"novelai",
	"swarmui",
	"stableswarmui",
	"stable swarm ui",
}

// longTextThreshold is the length, in characters, above which free text in a
// provenance field is treated as a prompt.
const longTextThreshold = 50

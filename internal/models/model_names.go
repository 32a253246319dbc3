package models

// DefaultModel is used when nothing else names a model
const DefaultModel = "gemini-2.5-flash"

// CustomModelOption is the selector value for any model outside PredefinedModels
const CustomModelOption = "custom"

// PredefinedModels are the models offered directly in the selector
var PredefinedModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash",
}

// ModelOption returns the selector value for model: the model itself when predefined,
// CustomModelOption otherwise. The model string is never rewritten.
func ModelOption(model string) string {
	for _, m := range PredefinedModels {
		if m == model {
			return m
		}
	}
	return CustomModelOption
}

package style

// AllowList is the default set of individual properties copied from a
// source node's resolved style when no serialised css-text snapshot is
// available. Order is significant: decoration iterates it as-is, so output
// is deterministic.
var AllowList = []string{
	"display",
	"position",
	"top", "right", "bottom", "left",
	"float", "clear",
	"width", "height",
	"min-width", "min-height", "max-width", "max-height",
	"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
	"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
	"border", "border-radius", "border-collapse", "border-spacing",
	"box-sizing", "box-shadow",
	"overflow", "overflow-x", "overflow-y",
	"color", "background", "background-color", "background-image",
	"background-size", "background-position", "background-repeat",
	"mask", "-webkit-mask", "mask-image", "-webkit-mask-image",
	"font-family", "font-size", "font-weight", "font-style", "font-variant",
	"line-height", "letter-spacing", "word-spacing", "white-space",
	"text-align", "text-decoration", "text-transform", "text-indent",
	"text-overflow", "text-shadow",
	"vertical-align", "direction",
	"opacity", "visibility", "z-index",
	"flex", "flex-direction", "flex-wrap", "flex-grow", "flex-shrink",
	"flex-basis", "justify-content", "align-items", "align-content",
	"align-self", "gap", "order",
	"grid-template-columns", "grid-template-rows", "grid-column", "grid-row",
	"transform", "transform-origin",
	"object-fit", "object-position",
	"cursor", "pointer-events",
	"list-style", "list-style-type", "list-style-position",
	"fill", "stroke", "stroke-width", "d",
}

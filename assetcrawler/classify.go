package assetcrawler

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/emilyzhang/assetcrawlr/extractiondb"
)

const defaultMimeType = "application/octet-stream"

// Output folders inside an extraction bundle.
const (
	folderCSS      = "css"
	folderJS       = "js"
	folderImages   = "images"
	folderPayloads = "payloads"
	folderFonts    = "fonts"
	folderAssets   = "assets"
)

// Classification is the result of classifying a URL.
type Classification struct {
	Type     extractiondb.FileType
	MimeType string
	Folder   string
	Font     bool
}

type extInfo struct {
	typ    extractiondb.FileType
	mime   string
	font   bool
	binary bool
}

var extensions = map[string]extInfo{
	"html": {typ: extractiondb.TypeHTML, mime: "text/html"},
	"htm":  {typ: extractiondb.TypeHTML, mime: "text/html"},
	"css":  {typ: extractiondb.TypeCSS, mime: "text/css"},
	"js":   {typ: extractiondb.TypeJS, mime: "application/javascript"},
	"mjs":  {typ: extractiondb.TypeJS, mime: "application/javascript"},
	"cjs":  {typ: extractiondb.TypeJS, mime: "application/javascript"},
	"jsx":  {typ: extractiondb.TypeJS, mime: "application/javascript"},
	"ts":   {typ: extractiondb.TypeJS, mime: "application/typescript"},
	"tsx":  {typ: extractiondb.TypeJS, mime: "application/typescript"},

	"png":  {typ: extractiondb.TypeImage, mime: "image/png", binary: true},
	"jpg":  {typ: extractiondb.TypeImage, mime: "image/jpeg", binary: true},
	"jpeg": {typ: extractiondb.TypeImage, mime: "image/jpeg", binary: true},
	"gif":  {typ: extractiondb.TypeImage, mime: "image/gif", binary: true},
	"webp": {typ: extractiondb.TypeImage, mime: "image/webp", binary: true},
	"ico":  {typ: extractiondb.TypeImage, mime: "image/x-icon", binary: true},
	"bmp":  {typ: extractiondb.TypeImage, mime: "image/bmp", binary: true},
	"tif":  {typ: extractiondb.TypeImage, mime: "image/tiff", binary: true},
	"tiff": {typ: extractiondb.TypeImage, mime: "image/tiff", binary: true},
	"avif": {typ: extractiondb.TypeImage, mime: "image/avif", binary: true},
	// svg is markup and travels as text
	"svg": {typ: extractiondb.TypeImage, mime: "image/svg+xml"},

	"woff":  {typ: extractiondb.TypeOther, mime: "font/woff", font: true, binary: true},
	"woff2": {typ: extractiondb.TypeOther, mime: "font/woff2", font: true, binary: true},
	"ttf":   {typ: extractiondb.TypeOther, mime: "font/ttf", font: true, binary: true},
	"otf":   {typ: extractiondb.TypeOther, mime: "font/otf", font: true, binary: true},
	"eot":   {typ: extractiondb.TypeOther, mime: "application/vnd.ms-fontobject", font: true, binary: true},

	"json": {typ: extractiondb.TypePayload, mime: "application/json"},
	"xml":  {typ: extractiondb.TypePayload, mime: "application/xml"},

	"mp3":  {typ: extractiondb.TypeOther, mime: "audio/mpeg", binary: true},
	"wav":  {typ: extractiondb.TypeOther, mime: "audio/wav", binary: true},
	"ogg":  {typ: extractiondb.TypeOther, mime: "audio/ogg", binary: true},
	"m4a":  {typ: extractiondb.TypeOther, mime: "audio/mp4", binary: true},
	"mp4":  {typ: extractiondb.TypeOther, mime: "video/mp4", binary: true},
	"webm": {typ: extractiondb.TypeOther, mime: "video/webm", binary: true},
	"mov":  {typ: extractiondb.TypeOther, mime: "video/quicktime", binary: true},
	"pdf":  {typ: extractiondb.TypeOther, mime: "application/pdf", binary: true},
	"zip":  {typ: extractiondb.TypeOther, mime: "application/zip", binary: true},
	"wasm": {typ: extractiondb.TypeOther, mime: "application/wasm", binary: true},
	"txt":  {typ: extractiondb.TypeOther, mime: "text/plain"},
}

// Classify maps a URL and an optional declared content type to a file
// category, canonical MIME type and output folder. The extension decides when
// it is known; the declared type is only consulted otherwise.
func Classify(rawURL, declared string) Classification {
	info, ok := extensions[extensionOf(rawURL)]
	if !ok {
		info, ok = declaredInfo(declared)
		if !ok {
			info = extInfo{typ: extractiondb.TypeOther, mime: defaultMimeType}
		}
		if mt := mediaType(declared); mt != "" {
			info.mime = mt
		}
	}
	return Classification{
		Type:     info.typ,
		MimeType: info.mime,
		Folder:   folderFor(info),
		Font:     info.font,
	}
}

// IsBinary reports whether a response for rawURL must be kept as raw bytes.
func IsBinary(rawURL, declared string) bool {
	if info, ok := extensions[extensionOf(rawURL)]; ok {
		return info.binary
	}
	mt := mediaType(declared)
	switch {
	case mt == "image/svg+xml":
		return false
	case strings.HasPrefix(mt, "image/"), strings.HasPrefix(mt, "font/"),
		strings.HasPrefix(mt, "audio/"), strings.HasPrefix(mt, "video/"):
		return true
	}
	switch mt {
	case "application/pdf", "application/octet-stream", "application/zip",
		"application/wasm", "application/vnd.ms-fontobject", "application/font-woff":
		return true
	}
	return false
}

func folderFor(info extInfo) string {
	if info.font {
		return folderFonts
	}
	switch info.typ {
	case extractiondb.TypeCSS:
		return folderCSS
	case extractiondb.TypeJS:
		return folderJS
	case extractiondb.TypeImage:
		return folderImages
	case extractiondb.TypePayload:
		return folderPayloads
	default:
		return folderAssets
	}
}

func declaredInfo(declared string) (extInfo, bool) {
	mt := mediaType(declared)
	switch {
	case mt == "":
		return extInfo{}, false
	case mt == "text/html", mt == "application/xhtml+xml":
		return extInfo{typ: extractiondb.TypeHTML}, true
	case mt == "text/css":
		return extInfo{typ: extractiondb.TypeCSS}, true
	case strings.Contains(mt, "javascript"), strings.Contains(mt, "ecmascript"):
		return extInfo{typ: extractiondb.TypeJS}, true
	case strings.HasPrefix(mt, "image/"):
		return extInfo{typ: extractiondb.TypeImage}, true
	case strings.HasPrefix(mt, "font/"), strings.HasPrefix(mt, "application/font-"),
		strings.HasPrefix(mt, "application/x-font-"), mt == "application/vnd.ms-fontobject":
		return extInfo{typ: extractiondb.TypeOther, font: true}, true
	case mt == "application/json", strings.HasSuffix(mt, "+json"),
		mt == "application/xml", mt == "text/xml":
		return extInfo{typ: extractiondb.TypePayload}, true
	}
	return extInfo{}, false
}

// mediaType returns the lowercased media type without parameters.
func mediaType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mt, _, _ = strings.Cut(declared, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// extensionOf returns the lowercased extension of the URL path, without the
// leading dot and ignoring query and fragment.
func extensionOf(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else {
		p, _, _ = strings.Cut(p, "?")
		p, _, _ = strings.Cut(p, "#")
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

func hasFontExtension(rawURL string) bool {
	info, ok := extensions[extensionOf(rawURL)]
	return ok && info.font
}

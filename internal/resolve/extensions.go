package resolve

// Disc images whose file system can be probed for a mastering date.
var discImageExtensions = extensionSet(".iso", ".img")

// Artifacts that commonly carry an Authenticode or script signature.
var signedExtensions = extensionSet(
	".exe", ".dll", ".sys", ".efi", ".scr",
	".msi", ".msu", ".appx", ".appxbundle", ".msix", ".msixbundle",
	".cat", ".cab",
	".js", ".vbs", ".wsf", ".ps1",
	".xap",
)

// Photos that may carry EXIF capture dates.
var photoExtensions = extensionSet(".jpg", ".jpeg", ".tif", ".tiff", ".dng", ".nef", ".cr2", ".arw", ".heic")

func extensionSet(exts ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[ext] = struct{}{}
	}
	return set
}

func hasExtension(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}

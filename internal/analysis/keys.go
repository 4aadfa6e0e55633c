package analysis

const (
	documentBlob = "resume.pdf"
	previewBlob  = "preview.png"
)

// CanonicalKey is the only key records are written under.
func CanonicalKey(id string) string {
	return "resume:" + id
}

// legacyKeys lists older key derivations, in lookup order. Only the
// retriever consults them.
func legacyKeys(id string) []string {
	return []string{"resume_" + id}
}

// lookupKeys returns the canonical key followed by the legacy derivations.
func lookupKeys(id string) []string {
	return append([]string{CanonicalKey(id)}, legacyKeys(id)...)
}

// DocumentBlobName is where the original PDF for id is uploaded.
func DocumentBlobName(id string) string {
	return id + "/" + documentBlob
}

// PreviewBlobName is where the rendered first page for id is uploaded.
func PreviewBlobName(id string) string {
	return id + "/" + previewBlob
}

package decode

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_TextRoundTrip(t *testing.T) {
	input := "Jane Doe\nSenior Engineer – Zürich\n"
	text, err := Decode("resume.txt", []byte(input))
	require.NoError(t, err)
	assert.Equal(t, input, text)
}

func TestDecode_TextInvalidUTF8(t *testing.T) {
	_, err := Decode("notes.txt", []byte{0xff, 0xfe, 0x00, 0x41})
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))
	assert.Equal(t, "Unsupported file type: Could not decode as text.", err.Error())
}

func TestDecode_UnknownExtension(t *testing.T) {
	for _, name := range []string{"photo.xyz", "README", "archive.zip"} {
		_, err := Decode(name, []byte("plain ascii content"))
		require.Error(t, err, name)
		assert.True(t, IsUnsupported(err), name)
		assert.Equal(t, "Unsupported file type", err.Error())
	}
}

func TestDecode_ExtensionIsCaseInsensitive(t *testing.T) {
	text, err := Decode("JOB.TXT", []byte("Backend role"))
	require.NoError(t, err)
	assert.Equal(t, "Backend role", text)
}

func TestDecode_CorruptPDF(t *testing.T) {
	_, err := Decode("broken.pdf", []byte("definitely not a pdf"))
	require.Error(t, err)
	assert.False(t, IsUnsupported(err))

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "broken.pdf", decodeErr.Filename)
	assert.Contains(t, err.Error(), "Error parsing PDF:")
	assert.NotNil(t, errors.Unwrap(err))
}

func TestDecode_CorruptDOCX(t *testing.T) {
	_, err := Decode("broken.docx", []byte("not a zip archive"))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Contains(t, err.Error(), "Error parsing DOCX:")
}

func TestDecode_DOCXParagraphs(t *testing.T) {
	data := buildDocx(t, nil, "First paragraph", "Second paragraph")
	text, err := Decode("cv.docx", data)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph\nSecond paragraph", text)
}

func TestDecode_DOCXKeepsEmptyParagraphs(t *testing.T) {
	data := buildDocx(t, nil, "First", "", "  Indented", "Last")
	text, err := Decode("cv.docx", data)
	require.NoError(t, err)
	assert.Equal(t, "First\n\n  Indented\nLast", text)
}

func TestDecode_DOCXIgnoresHeadersAndFooters(t *testing.T) {
	parts := map[string]string{
		"word/header1.xml": `<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>CONFIDENTIAL HEADER</w:t></w:r></w:p></w:hdr>`,
		"word/footer1.xml": `<w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>Page footer</w:t></w:r></w:p></w:ftr>`,
	}
	text, err := Decode("cv.docx", buildDocx(t, parts, "Body"))
	require.NoError(t, err)
	assert.Equal(t, "Body", text)
}

func TestDecode_DOCXRunsTabsAndBreaks(t *testing.T) {
	document := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:rPr><w:b/></w:rPr><w:t>Jane</w:t></w:r><w:r><w:t xml:space="preserve"> Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Skills</w:t><w:tab/><w:t>Go</w:t><w:br/><w:t>SQL</w:t></w:r></w:p>` +
		`<w:p/>` +
		`</w:body></w:document>`
	text, err := Decode("cv.docx", buildDocxPackage(t, map[string]string{"word/document.xml": document}))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nSkills\tGo\nSQL\n", text)
}

func TestDecode_DOCXMissingMainPart(t *testing.T) {
	data := buildDocxPackage(t, map[string]string{"word/header1.xml": "<w:hdr/>"})
	_, err := Decode("cv.docx", data)
	require.Error(t, err)
	assert.False(t, IsUnsupported(err))
	assert.Contains(t, err.Error(), "Error parsing DOCX:")
}

func TestDecode_PDFPagesInOrder(t *testing.T) {
	data := buildPDF(t, "BT (Hello) Tj ET", "BT (World) Tj ET")
	text, err := Decode("resume.pdf", data)
	require.NoError(t, err)
	assert.Equal(t, "HelloWorld", text)
}

func TestDecode_PDFSkipsUnreadablePage(t *testing.T) {
	data := buildPDF(t,
		"BT (Hello) Tj ET",
		"BT (Broken) Tj end ET",
		"BT (World) Tj ET",
	)
	text, err := Decode("resume.pdf", data)
	require.NoError(t, err)
	assert.Equal(t, "HelloWorld", text)
}

// buildDocx writes a package whose body holds one run per paragraph, plus any extra parts
func buildDocx(t *testing.T, extra map[string]string, paragraphs ...string) []byte {
	t.Helper()

	var body bytes.Buffer
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	parts := map[string]string{
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
	}
	for name, content := range extra {
		parts[name] = content
	}
	return buildDocxPackage(t, parts)
}

func buildDocxPackage(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	var overrides strings.Builder
	for name := range parts {
		contentType := "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
		switch {
		case strings.HasPrefix(name, "word/header"):
			contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"
		case strings.HasPrefix(name, "word/footer"):
			contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"
		}
		overrides.WriteString(`<Override PartName="/` + name + `" ContentType="` + contentType + `"/>`)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/>` +
			overrides.String() + `</Types>`,
	}
	for name, content := range parts {
		files[name] = content
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildPDF writes an uncompressed PDF with one content stream per page and a matching xref table
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
	}
	for i, content := range pages {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R >>", 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)
	return buf.Bytes()
}

package gateway

import (
	"bytes"
	"fmt"
	"mime/multipart"
)

// Form is a finished multipart form body. Build one with FormBuilder; the
// gateway leaves its content type (with the boundary) untouched.
type Form struct {
	payload     []byte
	contentType string
}

// ContentType returns the multipart content type including the boundary.
func (f *Form) ContentType() string { return f.contentType }

// FormBuilder assembles a multipart form for item and profile submissions
// with image uploads.
type FormBuilder struct {
	buf    bytes.Buffer
	writer *multipart.Writer
	err    error
}

func NewFormBuilder() *FormBuilder {
	b := &FormBuilder{}
	b.writer = multipart.NewWriter(&b.buf)
	return b
}

// Field appends a text field. Repeated calls with the same name append
// repeated values (categories, uploaded_images).
func (b *FormBuilder) Field(name, value string) *FormBuilder {
	if b.err != nil {
		return b
	}
	b.err = b.writer.WriteField(name, value)
	return b
}

// File appends a file field.
func (b *FormBuilder) File(name, filename string, data []byte) *FormBuilder {
	if b.err != nil {
		return b
	}
	part, err := b.writer.CreateFormFile(name, filename)
	if err != nil {
		b.err = err
		return b
	}
	_, b.err = part.Write(data)
	return b
}

// Build finalizes the form.
func (b *FormBuilder) Build() (*Form, error) {
	if b.err != nil {
		return nil, fmt.Errorf("failed to build multipart form: %w", b.err)
	}
	if err := b.writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart form: %w", err)
	}
	return &Form{
		payload:     b.buf.Bytes(),
		contentType: b.writer.FormDataContentType(),
	}, nil
}

// Package variants renders responsive variants of a source image.
//
// A Generator decodes a source once, then for each configured width that
// does not exceed the source's intrinsic width it scales the image
// (Catmull-Rom, aspect preserved) and encodes it into every configured
// format. Output files are named "<basename>-<width>.<ext>" inside the
// output directory and replaced atomically so the site never serves a
// truncated file.
package variants

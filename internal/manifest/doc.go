// Package manifest owns the image manifest consumed by the site build.
//
// The manifest maps each source image's site path ("/images/uploads/x.jpg")
// to its generated variants, intrinsic dimensions, per-format srcset strings
// and the source modification time recorded when the variants were written.
// The package also decides whether an image needs regeneration and prunes
// entries whose sources disappeared. Load fails open: a corrupt manifest
// yields an empty mapping so the next run regenerates everything rather than
// aborting.
package manifest

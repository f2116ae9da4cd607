// Package recipebox keeps user and recipe records consistent with the
// binary assets (images) they reference in an external blob store.
//
// The relational repository and the blob store do not share a transaction
// boundary, so every create, update and delete is sequenced the same way:
// upload new assets first, run the relational transaction, then delete
// no-longer-referenced assets best effort after the commit. When a step
// fails after assets were uploaded, the freshly uploaded assets are deleted
// as compensation before the error is returned. The guarantee is best
// effort: a crash between steps can leak unreferenced blobs, which the
// reconcile package cleans up out of band.
package recipebox

// Package extract unpacks downloaded zip batches into a single flat
// directory. Entry paths inside the archives are discarded; only base names
// survive. Archives are processed by a small worker pool and every entry is
// written via a temporary file and atomic rename.
package extract

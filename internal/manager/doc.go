// Package manager creates disposable containers on a container engine and
// guarantees they can be torn down in bulk.
//
// A Manager names every container it creates "<prefix>-<n>", remembers its ID,
// and removes all of them on ShutdownAll. The prefix is the only thing keeping
// two managers on the same engine from colliding, so callers must give
// concurrent managers distinct prefixes.
package manager

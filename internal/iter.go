package internal

import (
	"iter"
)

// IterSeq2Concat chains several key/value sequences, in order, into one.
// Later sequences may repeat keys of earlier ones; consumers that build maps
// therefore see the last definition win.
func IterSeq2Concat[K any, V any](seqs ...iter.Seq2[K, V]) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, seq := range seqs {
			for key, value := range seq {
				if !yield(key, value) {
					return
				}
			}
		}
	}
}

package main

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/sushant-115/kurodb/core/indexing/bptree"
	"github.com/sushant-115/kurodb/core/kv"
	"github.com/sushant-115/kurodb/pkg/logger"
)

const (
	totalKeys  = 100000
	treeOrder  = 64
	maxReaders = 10
	maxWriters = 20
)

func main() {
	zlogger, _ := logger.New(logger.Config{Level: "error"})
	tree, err := bptree.New[kv.String, kv.String](treeOrder, zlogger.Named("bptree_index"))
	if err != nil {
		log.Fatalf("failed to create tree: %v", err)
	}

	start := time.Now()
	write(tree)
	log.Printf("wrote %d keys in %s", totalKeys, time.Since(start))

	start = time.Now()
	read(tree)
	log.Printf("read %d keys in %s", totalKeys, time.Since(start))

	start = time.Now()
	remove(tree)
	log.Printf("removed %d keys in %s, remaining=%d", totalKeys, time.Since(start), tree.Len())
}

func write(tree *bptree.Bptree[kv.String, kv.String]) {
	wg := sync.WaitGroup{}
	sem := make(chan struct{}, maxWriters)
	for i := 0; i < totalKeys; i++ {
		sem <- struct{}{}
		key := "key-" + strconv.Itoa(i)
		value := "value-" + strconv.Itoa(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			tree.Insert(kv.String(key), kv.String(value))
		}()
	}
	wg.Wait()
}

func read(tree *bptree.Bptree[kv.String, kv.String]) {
	wg := sync.WaitGroup{}
	sem := make(chan struct{}, maxReaders)
	for i := 0; i < totalKeys; i++ {
		sem <- struct{}{}
		key := "key-" + strconv.Itoa(i)
		value := "value-" + strconv.Itoa(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			v, found := tree.Search(kv.String(key))
			if !found {
				log.Println("NOT FOUND: ", key)
				return
			}
			if string(v) != value {
				log.Println("MISMATCH: ", key)
			}
		}()
	}
	wg.Wait()
}

func remove(tree *bptree.Bptree[kv.String, kv.String]) {
	wg := sync.WaitGroup{}
	sem := make(chan struct{}, maxWriters)
	for i := 0; i < totalKeys; i++ {
		sem <- struct{}{}
		key := "key-" + strconv.Itoa(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if _, found := tree.Delete(kv.String(key)); !found {
				log.Println("DELETE MISS: ", key)
			}
		}()
	}
	wg.Wait()
}

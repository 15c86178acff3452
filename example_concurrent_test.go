// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"code.hybscloud.com/pfq"
)

// Example_concurrent demonstrates blocking producers and consumers
// coordinating through a small ring: the producers wait for free blocks,
// the consumer waits for records.
func Example_concurrent() {
	dir, err := os.MkdirTemp("", "pfq")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	// 64 bytes of ring after the header: backpressure kicks in quickly.
	q, err := pfq.Open[int](filepath.Join(dir, "work.q"), 4, 84)
	if err != nil {
		panic(err)
	}
	defer q.Close()

	const jobs = 100
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range jobs {
			if err := q.Put(ctx, &i); err != nil {
				panic(err)
			}
		}
	}()

	total := 0
	for range jobs {
		v, err := q.Take(ctx)
		if err != nil {
			panic(err)
		}
		total += v
	}
	wg.Wait()

	fmt.Println(total)

	// Output:
	// 4950
}

/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package summary

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"rollsum/internal/conversation"
)

const defaultEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// defaultCounterToken counts role plus content of each turn with the
// cl100k_base encoding. The encoding is loaded once per process.
func defaultCounterToken(ctx context.Context, turns []conversation.Turn) (tokenNum []int64, err error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(defaultEncoding)
	})
	if encErr != nil {
		return nil, fmt.Errorf("get encoding failed, encoding=%v, err=%w", defaultEncoding, encErr)
	}

	tokenNum = make([]int64, len(turns))
	for i, t := range turns {
		text := string(t.Role) + "\n" + t.Content
		tokenNum[i] = int64(len(enc.Encode(text, nil, nil)))
	}
	return tokenNum, nil
}

// totalTokens sums the counter output. Counting is best effort: a failure
// or a length mismatch yields -1.
func totalTokens(ctx context.Context, counter TokenCounter, turns []conversation.Turn) int64 {
	counts, err := counter(ctx, turns)
	if err != nil || len(counts) != len(turns) {
		return -1
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}

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

// Package summary keeps a chat history bounded by folding older turns into a
// rolling summary.
//
// Overview:
//
// Every pass generates one reply, then counts the actual conversation turns.
// When the count is strictly greater than the configured threshold, the
// controller asks the model for a summary of those turns, stores the response
// as the new summary and keeps only the most recent turns verbatim.
//
// Summary Representation:
//
//   - VariantField (default): the summary lives in State.Summary. Before each
//     reply it is shown to the model as a leading system turn
//     "Summary of conversation earlier: <summary>". Compaction is expressed as
//     removals of every turn except the kept ones.
//   - VariantEmbedded: the summary is stored as that system turn at index 0 of
//     the history. It is never counted and never kept as an actual turn.
//
// Prompts:
//
// Without a previous summary the model is asked to
// "Create a summary of the conversation above:". With one, the previous text
// is embedded in an instruction asking the model to extend it. Either way the
// response replaces the old summary.
//
// Basic Usage:
//
//	ctrl, err := summary.New(&summary.Config{Gateway: gw})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if _, err := ctrl.GenerateReply(ctx, st); err != nil {
//		return err
//	}
//	next, err := ctrl.Decide(ctx, st)
//	if err != nil {
//		return err
//	}
//	if next == summary.PhaseSummarizing {
//		_, err = ctrl.Summarize(ctx, st)
//	}
//
// Limitations:
//
//   - Nothing is retried; a gateway failure ends the pass. A reply appended
//     before a failed summarization is kept.
//   - Token counts are reported for observation only and never drive decisions.
package summary

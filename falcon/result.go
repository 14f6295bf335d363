// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package falcon

// Result classifies the response of the push endpoint.
type Result string

const (
	// The endpoint accepted the batch.
	Success Result = "Success"

	// The push path does not exist on the endpoint, usually a
	// misconfigured URL or an agent without the HTTP push API enabled.
	NotFound Result = "NotFound"

	// The endpoint failed while handling the batch.
	ServerError Result = "ServerError"

	// The endpoint answered with a status code that has no
	// dedicated handling.
	Unknown Result = "Unknown"

	// No response was received.
	Unreachable Result = "Unreachable"
)

// classify maps an HTTP status code to a Result.
func classify(code int) Result {
	switch code {
	case 200:
		return Success
	case 404:
		return NotFound
	case 500:
		return ServerError
	default:
		return Unknown
	}
}

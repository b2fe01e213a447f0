// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sirseer_collect_requests_total",
		Help: "Page requests by resource and outcome",
	}, []string{"resource", "outcome"})

	recordsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sirseer_collect_records_inserted_total",
		Help: "Records added to a store for the first time",
	}, []string{"resource"})

	partitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sirseer_collect_partitions_total",
		Help: "Partition walks by terminal status",
	}, []string{"status"})
)

package sqlinline

const QInsertJob = `--sql 0d9c8b7a-6e5f-4d3c-9b2a-1f0e9d8c7b6a
insert into editor_jobs (
    id, user_id, prediction_id, kind, state, progress, attempts,
    inline, bounds, source_url, created_at, updated_at
)
values (
    $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::int, $7::int,
    $8::bool, $9::jsonb, $10::text, now(), now()
)
returning created_at, updated_at;
`

const QUpdateJob = `--sql 4e3d2c1b-0a9f-48e7-b6d5-c4b3a2f1e0d9
update editor_jobs
set
    state = $2::text,
    progress = $3::int,
    attempts = $4::int,
    result = $5::jsonb,
    error_detail = nullif($6::text, ''),
    updated_at = now()
where id = $1::uuid
returning updated_at;
`

const QSelectJobForUser = `--sql 8b7a6f5e-4d3c-42b1-a0f9-e8d7c6b5a4f3
select
    id::text,
    user_id,
    prediction_id,
    kind,
    state,
    progress,
    attempts,
    result,
    coalesce(error_detail, '') as error_detail,
    bounds,
    inline,
    coalesce(source_url, '') as source_url,
    coalesce(late_status, '') as late_status,
    created_at,
    updated_at
from editor_jobs
where id = $1::uuid
  and user_id = $2::text
limit 1;
`

const QSelectUncheckedTimedOutJobs = `--sql c3b2a1f0-e9d8-47c6-b5a4-f3e2d1c0b9a8
select
    id::text,
    user_id,
    prediction_id,
    kind,
    state,
    progress,
    attempts,
    created_at,
    updated_at
from editor_jobs
where state = 'timedOut'
  and late_checked_at is null
order by updated_at asc
limit $1::int;
`

const QUpdateJobLateStatus = `--sql f1e0d9c8-b7a6-4594-8382-7160f5e4d3c2
update editor_jobs
set
    late_status = nullif($2::text, ''),
    late_checked_at = now()
where id = $1::uuid;
`

const QExpireStaleJobs = `--sql 5a4b3c2d-1e0f-4a9b-8c7d-6e5f4a3b2c1d
update editor_jobs
set
    state = 'timedOut',
    error_detail = nullif($2::text, ''),
    updated_at = now()
where state in ('created', 'starting', 'processing')
  and updated_at < now() - ($1::bigint * interval '1 second');
`

package sqlinline

const QInsertUserImage = `--sql 2a6c4e8f-1b3d-4f5a-8c7e-9d0b1a2c3e4f
insert into user_images (id, user_id, original_url, processed_url, operation_type, file_name, file_size, created_at)
values (gen_random_uuid(), $1::text, $2::text, nullif($3::text, ''), $4::text, $5::text, $6::bigint, now())
returning id, created_at;
`

const QSelectUserImages = `--sql 6f0e1d2c-3b4a-4958-8776-a5b4c3d2e1f0
select
    id,
    user_id,
    original_url,
    coalesce(processed_url, '') as processed_url,
    operation_type,
    coalesce(file_name, '') as file_name,
    coalesce(file_size, 0) as file_size,
    created_at
from user_images
where user_id = $1::text
order by created_at desc
limit $2::int;
`
